package controllers

import (
	"fmt"
	"net/http"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylistapi/models"
)

type AuthController struct {
	FirebaseApp *firebase.App
}

func (m *AuthController) AuthRoutes(g *echo.Group) {
	g.POST("/token", func(c echo.Context) (err error) {
		creds := new(models.DeviceAuthIn)
		if err := c.Bind(creds); err != nil {
			return err
		}
		if !models.ValidatePlatformRaw(creds.Platform) {
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
		}
		if err = c.Validate(creds); err != nil {
			return err
		}

		db := c.Get("__db").(*gorm.DB)
		var user *models.UserAccount
		r := db.Where("email = ?", creds.Email).Limit(1).Find(&user)
		if r.Error != nil {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
		}

		isNew := r.RowsAffected == 0
		if isNew {
			user = &models.UserAccount{
				Name:                 creds.Name,
				Email:                creds.Email,
				Status:               "FINISHED_AUTH",
				UTMSource:            creds.UTMSource,
				Platform:             models.ScanPlatform(creds.Platform),
				ReceiveNotifications: true,
			}
			if err := db.Create(user).Error; err != nil {
				sentry.CaptureException(err)
				return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
			}
			fmt.Println("Created new user", user.ID, user.Email)
		}
		if user.Banned {
			return echo.ErrForbidden
		}
		user.LastIp = c.RealIP()
		db.Select("last_ip").Updates(user)

		refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, models.SignInOut{
			Id:           UIntToStr(user.ID),
			Email:        user.Email,
			New:          isNew,
			AccessToken:  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
			RefreshToken: refreshToken,
		})
	})

	g.POST("/refresh", func(c echo.Context) error {
		req := new(models.RefreshTokenIn)
		if err := c.Bind(req); err != nil {
			return err
		}
		if err := c.Validate(req); err != nil {
			return err
		}

		token, err := jwt.Parse(req.RefreshToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil || !token.Valid {
			return echo.ErrUnauthorized
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return echo.ErrUnauthorized
		}
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return echo.ErrUnauthorized
		}

		db := c.Get("__db").(*gorm.DB)
		var user models.UserAccount
		r := db.Limit(1).Find(&user, "id = ?", sub)
		if r.Error != nil || r.RowsAffected == 0 {
			return echo.ErrUnauthorized
		}
		if user.Banned {
			return echo.ErrForbidden
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"access_token": GenerateUserToken(sub, c, 72),
		})
	})
}
