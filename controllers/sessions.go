package controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
	"stylistapi/tasks"
)

type SessionsController struct {
	Model      services.StylistModel
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *SessionsController) SessionRoutes(g *echo.Group) {
	g.POST("", controller.CreateSession)
	g.GET("/:id", controller.GetSession)
	g.POST("/:id/regenerate", controller.RegenerateCombo)
}

func (controller *SessionsController) CreateSession(c echo.Context) error {
	var req models.StyleSessionIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !models.ValidSessionKind(req.Kind) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown styling kind"})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(tasks.Enqueuer)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	var upload models.PhotoUpload
	r := db.Limit(1).Find(&upload, "id = ? AND owner_id = ?", req.UploadId, user.ID)
	if r.Error != nil {
		sentry.CaptureException(r.Error)
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Upload not found"})
	}
	if upload.Status != models.UploadStatusUploaded {
		return c.JSON(http.StatusConflict, map[string]string{"error": "This photo has not finished uploading yet"})
	}

	session := models.StyleSession{
		OwnerID:  user.ID,
		UploadID: upload.ID,
		Kind:     req.Kind,
		Status:   models.SessionStatusPending,
	}

	if req.Preferences != nil && strings.TrimSpace(*req.Preferences) != "" {
		session.Preferences = services.StrPointer(strings.TrimSpace(*req.Preferences))
	}

	switch req.Kind {
	case models.SessionKindOccasion:
		if req.Occasion == nil || strings.TrimSpace(*req.Occasion) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please tell us the occasion you are dressing for"})
		}
		session.Occasion = services.StrPointer(strings.TrimSpace(*req.Occasion))
	case models.SessionKindCoordinated:
		if upload.SubjectCount == nil || *upload.SubjectCount < 2 {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Coordinated styling needs a photo with at least two people"})
		}
		if len(req.Subjects) != 2 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please select exactly two people for coordinated styling"})
		}
		if !subjectsDetected(upload, req.Subjects) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Selected people were not found in this photo"})
		}
		session.Subject = services.StrPointer(strings.Join(req.Subjects, "|"))
	}

	// single-person kinds on a group photo: the caller may pick one person to focus on
	if req.Kind != models.SessionKindCoordinated && len(req.Subjects) > 0 {
		if len(req.Subjects) > 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only coordinated styling works with more than one person"})
		}
		if !subjectsDetected(upload, req.Subjects) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Selected person was not found in this photo"})
		}
		session.Subject = services.StrPointer(req.Subjects[0])
	}

	if models.IsFreeTier(user.Subscription) {
		var totalSessionCount int64
		if err := db.Model(&models.StyleSession{}).Where("owner_id = ?", user.ID).Count(&totalSessionCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get session data"})
		}
		fmt.Printf("[User %v] Free plan, session count: %v", user.ID, totalSessionCount)
		if totalSessionCount >= 3 {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "You have reached the free limit of total 3 styling sessions, please subscribe"})
		}
	}

	if user.EnforcedDailySessionLimit != nil {
		var dailySessionCount int64
		today := time.Now().UTC().Format("2006-01-02")
		if err := db.Model(&models.StyleSession{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailySessionCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get session data"})
		}
		fmt.Printf("[User %v] Enforced daily limit, session count: %v", user.ID, dailySessionCount)
		if dailySessionCount >= int64(*user.EnforcedDailySessionLimit) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the limit of %v daily styling sessions. Please wait for the next day.", *user.EnforcedDailySessionLimit)})
		}
	}

	if err := db.Create(&session).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create session, please try again"})
	}

	task, err := tasks.NewStyleSessionTask(session.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start styling, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start styling, please try again"})
	}
	fmt.Println("[Queue] Styling task submitted, Session ID: ", session.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusCreated, models.StyleSessionOut{
		Id:       session.ID,
		Kind:     session.Kind,
		Status:   session.Status,
		Occasion: session.Occasion,
	})
}

func subjectsDetected(upload models.PhotoUpload, chosen []string) bool {
	if upload.SubjectsJSON == nil {
		return false
	}
	var detected []models.DetectedSubject
	if err := json.Unmarshal([]byte(*upload.SubjectsJSON), &detected); err != nil {
		sentry.CaptureException(err)
		return false
	}
	for _, label := range chosen {
		found := false
		for _, subject := range detected {
			if subject.Label == label {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (controller *SessionsController) GetSession(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var session models.StyleSession
	r := db.Limit(1).Find(&session, "id = ? AND owner_id = ?", c.Param("id"), user.ID)
	if r.Error != nil {
		sentry.CaptureException(r.Error)
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}

	out := models.StyleSessionOut{
		Id:              session.ID,
		Kind:            session.Kind,
		Status:          session.Status,
		Occasion:        session.Occasion,
		Duration:        session.Duration,
		GenerationError: session.GenerationError,
	}
	if session.ResultJSON != nil {
		if err := decodeSessionResult(session, &out); err != nil {
			sentry.CaptureException(fmt.Errorf("[Session: %v] Corrupted result json: %v", session.ID, err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not read session results"})
		}
		attachRatings(db, user.ID, sessionOutCombos(&out))
	}
	return c.JSON(http.StatusOK, out)
}

func decodeSessionResult(session models.StyleSession, out *models.StyleSessionOut) error {
	data := []byte(*session.ResultJSON)
	switch session.Kind {
	case models.SessionKindAdvice:
		out.Advice = &models.FashionAdvice{}
		return json.Unmarshal(data, out.Advice)
	case models.SessionKindWeekly:
		out.WeeklyPlan = &models.WeeklyPlan{}
		return json.Unmarshal(data, out.WeeklyPlan)
	case models.SessionKindOccasion:
		out.OccasionWear = &models.OccasionWearResults{}
		return json.Unmarshal(data, out.OccasionWear)
	case models.SessionKindCoordinated:
		out.CoordinatedAdvice = &models.CoordinatedAdvice{}
		return json.Unmarshal(data, out.CoordinatedAdvice)
	}
	return fmt.Errorf("unknown session kind %q", session.Kind)
}

func sessionOutCombos(out *models.StyleSessionOut) []*models.OutfitCombo {
	var combos []*models.OutfitCombo
	if out.Advice != nil {
		for i := range out.Advice.OutfitCombos {
			combos = append(combos, &out.Advice.OutfitCombos[i])
		}
	}
	if out.WeeklyPlan != nil {
		for i := range *out.WeeklyPlan {
			combos = append(combos, &(*out.WeeklyPlan)[i].Outfit)
		}
	}
	if out.OccasionWear != nil {
		for i := range *out.OccasionWear {
			combos = append(combos, &(*out.OccasionWear)[i])
		}
	}
	return combos
}

// attachRatings merges the user's stored combo ratings onto the decoded
// result. Best effort, a read failure leaves the combos unrated.
func attachRatings(db *gorm.DB, userID uint, combos []*models.OutfitCombo) {
	if len(combos) == 0 {
		return
	}
	ids := make([]string, 0, len(combos))
	for _, combo := range combos {
		ids = append(ids, combo.ID)
	}
	var ratings []models.ComboRating
	if err := db.Where("owner_id = ? AND combo_id IN ?", userID, ids).Find(&ratings).Error; err != nil {
		log.Printf("Could not load combo ratings for user %v: %v", userID, err)
		return
	}
	byCombo := make(map[string]models.Rating, len(ratings))
	for _, rating := range ratings {
		byCombo[rating.ComboID] = models.Rating(rating.Rating)
	}
	for _, combo := range combos {
		if rating, ok := byCombo[combo.ID]; ok {
			r := rating
			combo.Rating = &r
		}
	}
}

// RegenerateCombo replaces a single combo of a completed session with a fresh
// one, conditioned on the rating the user gave it. The rest of the session
// result is left untouched, and so is the old combo when generation fails.
func (controller *SessionsController) RegenerateCombo(c echo.Context) error {
	var req models.RegenerateComboIn
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

	var session models.StyleSession
	r := db.Joins("Upload").Limit(1).Find(&session, "style_sessions.id = ? AND style_sessions.owner_id = ?", c.Param("id"), user.ID)
	if r.Error != nil {
		sentry.CaptureException(r.Error)
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if session.Status != models.SessionStatusCompleted || session.ResultJSON == nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "This session has no results to regenerate yet"})
	}
	if session.Kind == models.SessionKindCoordinated {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Coordinated looks cannot be regenerated one by one"})
	}

	out := models.StyleSessionOut{Kind: session.Kind}
	if err := decodeSessionResult(session, &out); err != nil {
		sentry.CaptureException(fmt.Errorf("[Session: %v] Corrupted result json: %v", session.ID, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not read session results"})
	}
	combos := sessionOutCombos(&out)
	var prev *models.OutfitCombo
	for _, combo := range combos {
		if combo.ID == req.ComboId {
			prev = combo
			break
		}
	}
	if prev == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found in this session"})
	}

	var rating *models.Rating
	var stored models.ComboRating
	rr := db.Limit(1).Find(&stored, "owner_id = ? AND combo_id = ?", user.ID, req.ComboId)
	if rr.Error == nil && rr.RowsAffected > 0 {
		v := models.Rating(stored.Rating)
		rating = &v
	}

	photo, err := controller.fetchSourcePhoto(c, session.Upload)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not read the session photo, please try again"})
	}

	stylist := services.NewStylist(controller.Model)
	if session.Preferences != nil {
		stylist.Preferences = *session.Preferences
	}
	if session.Subject != nil {
		stylist.SubjectHint = *session.Subject
	}
	if user.EnforcedLLMModel != nil {
		stylist.TextModel = services.LLMModelName(*user.EnforcedLLMModel)
	}
	fresh, _, err := stylist.RegenerateCombo(c.Request().Context(), photo, prev, rating)
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Sorry, it seems that this photo contains content that we cannot process."})
		}
		fmt.Printf("[Session: %v] Error on regenerating combo %v: %v\n", session.ID, req.ComboId, err)
		sentry.CaptureException(fmt.Errorf("[Session: %v] Error on regenerating combo %v: %v", session.ID, req.ComboId, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Sorry, we failed to restyle this look, please try again"})
	}

	*prev = *fresh

	resultBytes, err := marshalSessionResult(session.Kind, &out)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Session: %v] Error on dumping result json: %v", session.ID, err))
		return echo.ErrInternalServerError
	}
	resultString := string(resultBytes)
	session.ResultJSON = &resultString
	if err := db.Select("result_json").Updates(&session).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	fmt.Printf("[Session: %v] Regenerated combo %v -> %v\n", session.ID, req.ComboId, fresh.ID)

	return c.JSON(http.StatusOK, fresh)
}

func marshalSessionResult(kind string, out *models.StyleSessionOut) ([]byte, error) {
	switch kind {
	case models.SessionKindAdvice:
		return json.Marshal(out.Advice)
	case models.SessionKindWeekly:
		return json.Marshal(out.WeeklyPlan)
	case models.SessionKindOccasion:
		return json.Marshal(out.OccasionWear)
	case models.SessionKindCoordinated:
		return json.Marshal(out.CoordinatedAdvice)
	}
	return nil, fmt.Errorf("unknown session kind %q", kind)
}

func (controller *SessionsController) fetchSourcePhoto(c echo.Context, upload models.PhotoUpload) (services.ImageInput, error) {
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	readURL, err := controller.URLCache.GetReadURL(c.Request().Context(), upload.StorageKey)
	if err != nil {
		log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", upload.StorageKey, err)
		readURL, err = controller.AWSService.GetPresignedR2FileReadURL(c.Request().Context(), bucketName, upload.StorageKey)
		if err != nil {
			return services.ImageInput{}, err
		}
	}
	photoBytes, err := services.ReadFileFromUrl(readURL)
	if err != nil {
		return services.ImageInput{}, err
	}
	mediaType := upload.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return services.ImageInput{Data: photoBytes, MIMEType: mediaType}, nil
}
