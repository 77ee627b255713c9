package controllers

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stylistapi/models"
)

type RatingsController struct {
}

func (controller *RatingsController) RatingRoutes(g *echo.Group) {
	g.POST("/combos/:comboId/rating", controller.RateCombo)
	g.POST("/favorites", controller.AddFavorite)
	g.GET("/favorites", controller.ListFavorites)
	g.DELETE("/favorites/:suggestionId", controller.RemoveFavorite)
}

// RateCombo records the user's verdict on a generated look. A repeated rating
// for the same combo overwrites the previous one.
func (controller *RatingsController) RateCombo(c echo.Context) error {
	var req models.ComboRatingIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !models.ValidRating(req.Rating) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Rating must be like or dislike"})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	rating := models.ComboRating{
		OwnerID:  user.ID,
		ComboID:  c.Param("comboId"),
		Occasion: req.Occasion,
		Rating:   req.Rating,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "combo_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"occasion", "rating", "updated_at"}),
	}).Create(&rating).Error
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save rating, please try again"})
	}
	return c.JSON(http.StatusOK, rating)
}

func (controller *RatingsController) AddFavorite(c echo.Context) error {
	var req models.FavoriteIn
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

	favorite := models.FavoriteSuggestion{
		OwnerID:      user.ID,
		SuggestionID: req.SuggestionId,
		Style:        req.Style,
		Description:  req.Description,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "suggestion_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"style", "description", "updated_at"}),
	}).Create(&favorite).Error
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save favorite, please try again"})
	}
	return c.JSON(http.StatusCreated, favorite)
}

func (controller *RatingsController) ListFavorites(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	favorites := []models.FavoriteSuggestion{}
	if err := db.Where("owner_id = ?", user.ID).Order("created_at DESC").Find(&favorites).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch favorites"})
	}
	return c.JSON(http.StatusOK, favorites)
}

func (controller *RatingsController) RemoveFavorite(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	r := db.Where("owner_id = ? AND suggestion_id = ?", user.ID, c.Param("suggestionId")).Delete(&models.FavoriteSuggestion{})
	if r.Error != nil {
		sentry.CaptureException(r.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to remove favorite"})
	}
	if r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Favorite not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Favorite removed"})
}
