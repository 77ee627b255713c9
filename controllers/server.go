package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
	"stylistapi/tasks"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func SetupServer(
	db *gorm.DB,
	model services.StylistModel,
	awsService services.AWSServiceProvider,
	firebaseApp *firebase.App,
	asynqClient tasks.Enqueuer,
	asynqInspector *asynq.Inspector,
	urlCache services.URLCacheServiceProvider,
) *echo.Echo {

	fmt.Println(firebaseApp, "Firebase app")
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			c.Set("__asynqinspector", asynqInspector)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	authController := AuthController{FirebaseApp: firebaseApp}
	authGroup := e.Group("/auth")
	authController.AuthRoutes(authGroup)

	stylingGroup := e.Group("/styling", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))))
	stylingGroup.Use(UserMiddleware)

	profileController := ProfileController{}
	profileController.ProfileRoutes(stylingGroup)

	uploadsController := UploadsController{Model: model, AWSService: awsService, URLCache: urlCache}
	uploadsGroup := stylingGroup.Group("/uploads")
	uploadsController.UploadRoutes(uploadsGroup)

	sessionsController := SessionsController{Model: model, AWSService: awsService, URLCache: urlCache}
	sessionsGroup := stylingGroup.Group("/sessions")
	sessionsController.SessionRoutes(sessionsGroup)

	ratingsController := RatingsController{}
	ratingsController.RatingRoutes(stylingGroup)

	return e
}
