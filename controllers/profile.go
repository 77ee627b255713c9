package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylistapi/models"
)

type ProfileController struct {
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		return c.JSON(http.StatusOK, models.UserMeInfoOut{
			Id:                   UIntToStr(user.ID),
			Name:                 user.Name,
			Email:                user.Email,
			Status:               user.Status,
			Subscription:         user.Subscription,
			ReceiveNotifications: user.ReceiveNotifications,
		})
	})

	g.PUT("/me/settings", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		settings := new(models.UserSettingsIn)
		if err := c.Bind(settings); err != nil {
			return err
		}
		user.ReceiveNotifications = settings.ReceiveNotifications
		if err := db.Select("receive_notifications").Updates(&user).Error; err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Settings updated"})
	})

	g.POST("/me/push", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		pushIn := new(models.UserPushIn)
		if err := c.Bind(pushIn); err != nil {
			return err
		}
		if !models.ValidatePlatformRaw(pushIn.Platform) {
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
		}
		if pushIn.Token == "" {
			return echo.ErrBadRequest
		}

		var existing models.UserPushToken
		r := db.Limit(1).Find(&existing, "user_account_id = ? AND token = ?", user.ID, pushIn.Token)
		if r.Error != nil {
			sentry.CaptureException(r.Error)
			return echo.ErrInternalServerError
		}
		if r.RowsAffected > 0 {
			existing.Active = true
			existing.Platform = models.ScanPlatform(pushIn.Platform)
			db.Save(&existing)
			return c.JSON(http.StatusOK, echo.Map{"message": "Push token refreshed"})
		}
		pushToken := models.UserPushToken{
			UserAccountID: user.ID,
			Platform:      models.ScanPlatform(pushIn.Platform),
			Token:         pushIn.Token,
			Active:        true,
		}
		if err := db.Create(&pushToken).Error; err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		fmt.Println("Registered push token for user", user.ID)
		return c.JSON(http.StatusCreated, echo.Map{"message": "Push token registered"})
	})

	g.DELETE("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		now := time.Now()
		user.ConfirmedDeleteDate = &now
		if err := db.Select("confirmed_delete_date").Updates(&user).Error; err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Account scheduled for deletion"})
	})
}
