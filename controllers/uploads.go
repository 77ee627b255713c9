package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
)

type UploadsController struct {
	Model      services.StylistModel
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *UploadsController) UploadRoutes(g *echo.Group) {
	g.POST("", controller.CreateUpload)
	g.POST("/:id/subjects", controller.DetectSubjects)
}

func (controller *UploadsController) CreateUpload(c echo.Context) error {
	var req models.UploadRequestIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	if !services.AllowedUploadExtension(req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image format, please upload a photo"})
	}

	if models.IsFreeTier(user.Subscription) {
		var totalUploadCount int64
		if err := db.Model(&models.PhotoUpload{}).Where("owner_id = ?", user.ID).Count(&totalUploadCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get upload data"})
		}
		fmt.Printf("[User %v] Free plan, upload count: %v", user.ID, totalUploadCount)
		if totalUploadCount >= 5 {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "You have reached the free limit of total 5 photos, please subscribe"})
		}
	}

	if user.EnforcedDailyUploadLimit != nil {
		var dailyUploadCount int64
		today := time.Now().UTC().Format("2006-01-02")
		if err := db.Model(&models.PhotoUpload{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailyUploadCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get upload data"})
		}
		fmt.Printf("[User %v] Enforced daily limit, upload count: %v", user.ID, dailyUploadCount)
		if dailyUploadCount >= int64(*user.EnforcedDailyUploadLimit) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the limit of %v daily photos. Please wait for the next day.", *user.EnforcedDailyUploadLimit)})
		}
	}

	upload := models.PhotoUpload{
		OwnerID:   user.ID,
		MediaType: req.MediaType,
		Status:    models.UploadStatusDraft,
	}
	if err := db.Create(&upload).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create upload, please try again"})
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	storageKey := services.SourcePhotoKey(user.ID, upload.ID, req.FileName)
	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, storageKey)
	if presignErr != nil {
		log.Printf("Unable to presign upload %v!, %s", upload.ID, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while preparing photo upload",
		})
	}
	upload.StorageKey = storageKey
	if err := db.Select("storage_key").Updates(&upload).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create upload, please try again"})
	}

	return c.JSON(http.StatusCreated, models.UploadRequestOut{
		UploadId:  upload.ID,
		UploadUrl: uploadUrl,
	})
}

// DetectSubjects confirms the photo landed in storage and runs subject
// detection on it synchronously. The session endpoints refuse uploads that
// never went through here.
func (controller *UploadsController) DetectSubjects(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var upload models.PhotoUpload
	r := db.Limit(1).Find(&upload, "id = ? AND owner_id = ?", c.Param("id"), user.ID)
	if r.Error != nil {
		sentry.CaptureException(r.Error)
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Upload not found"})
	}
	if upload.Status == models.UploadStatusRejected {
		return c.JSON(http.StatusConflict, map[string]string{"error": "This photo was rejected, please upload another one"})
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	readURL, err := controller.URLCache.GetReadURL(c.Request().Context(), upload.StorageKey)
	if err != nil {
		log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", upload.StorageKey, err)
		readURL, err = controller.AWSService.GetPresignedR2FileReadURL(c.Request().Context(), bucketName, upload.StorageKey)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not read the uploaded photo, please try again"})
		}
	}
	photoBytes, err := services.ReadFileFromUrl(readURL)
	if err != nil {
		fmt.Println("Could not fetch uploaded photo:", err)
		return c.JSON(http.StatusConflict, map[string]string{"error": "We could not find your photo in storage, did the upload finish?"})
	}

	stylist := services.NewStylist(controller.Model)
	subjects, _, err := stylist.DetectSubjects(c.Request().Context(), services.ImageInput{
		Data:     photoBytes,
		MIMEType: upload.MediaType,
	})
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			upload.Status = models.UploadStatusRejected
			db.Select("status").Updates(&upload)
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "This photo cannot be processed, please choose a different one"})
		}
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not analyze the photo, please try again"})
	}

	subjectsJSON, err := json.Marshal(subjects)
	if err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	count := len(subjects)
	upload.Status = models.UploadStatusUploaded
	upload.SubjectsJSON = services.StrPointer(string(subjectsJSON))
	upload.SubjectCount = &count
	if err := db.Select("status", "subjects_json", "subject_count").Updates(&upload).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	fmt.Printf("[Upload %v] Detected %v subject(s)\n", upload.ID, count)

	return c.JSON(http.StatusOK, models.SubjectDetectionOut{
		SubjectCount: count,
		Subjects:     subjects,
	})
}
