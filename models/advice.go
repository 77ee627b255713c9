package models

import (
	"fmt"
	"sort"
)

// Rating is a user's verdict on a generated outfit combo.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
)

func ValidRating(value string) bool {
	return value == string(RatingLike) || value == string(RatingDislike)
}

// Sentinel values the model is instructed to emit for empty slots. Consumers
// must treat them as absence, never as literal product data.
const (
	ProductNotApplicable = "Not applicable"
	ProductNone          = "None"
)

// ProductSuggestion is one clothing or accessory item inside a combo.
type ProductSuggestion struct {
	Description  string `json:"description"`
	ProductName  string `json:"productName"`
	PurchaseLink string `json:"purchaseLink"`
}

// IsPresent reports whether the slot actually holds an item.
func (p ProductSuggestion) IsPresent() bool {
	return p.Description != "" && p.Description != ProductNone
}

// HasProduct reports whether a concrete purchasable product is attached.
func (p ProductSuggestion) HasProduct() bool {
	return p.ProductName != "" && p.ProductName != ProductNotApplicable &&
		p.PurchaseLink != "" && p.PurchaseLink != ProductNotApplicable
}

// OutfitCombo is a single complete look. A combo is either separates
// (top + bottom) or a one-piece (dress), never both and never neither.
// The ID is assigned locally, the generation service is never trusted to
// produce unique combo ids.
type OutfitCombo struct {
	ID             string             `json:"id"`
	Occasion       string             `json:"occasion"`
	Top            *ProductSuggestion `json:"top,omitempty"`
	Bottom         *ProductSuggestion `json:"bottom,omitempty"`
	Dress          *ProductSuggestion `json:"dress,omitempty"`
	Shoes          ProductSuggestion  `json:"shoes"`
	Accessories    ProductSuggestion  `json:"accessories"`
	Summary        string             `json:"summary"`
	ImageURL       *string            `json:"imageUrl,omitempty"`
	ImageError     bool               `json:"imageError,omitempty"`
	IsRegenerating bool               `json:"isRegenerating,omitempty"`
	Rating         *Rating            `json:"rating,omitempty"`
}

// ValidateWearing enforces the separates-XOR-one-piece shape.
func (c *OutfitCombo) ValidateWearing() error {
	separates := c.Top != nil && c.Bottom != nil
	onePiece := c.Dress != nil
	if separates && onePiece {
		return fmt.Errorf("outfit combo for %q has both separates and a dress", c.Occasion)
	}
	if !separates && !onePiece {
		return fmt.Errorf("outfit combo for %q has neither separates nor a dress", c.Occasion)
	}
	return nil
}

// ImageSettled reports whether the image generation attempt for this combo
// has resolved, one way or the other.
func (c *OutfitCombo) ImageSettled() bool {
	return c.ImageURL != nil || c.ImageError
}

type OutfitSuggestion struct {
	ID          string `json:"id"`
	Style       string `json:"style"`
	Description string `json:"description"`
}

type ColorCombination struct {
	PaletteName string   `json:"paletteName"`
	Colors      []string `json:"colors"`
	Description string   `json:"description"`
}

// FashionAdvice is the aggregate result of the primary styling flow.
type FashionAdvice struct {
	OutfitSuggestions []OutfitSuggestion `json:"outfitSuggestions"`
	ColorCombinations []ColorCombination `json:"colorCombinations"`
	OutfitCombos      []OutfitCombo      `json:"outfitCombos"`
	PersonalizedTips  []string           `json:"personalizedTips"`
}

// DayPlan is one weekday's outfit in a weekly plan.
type DayPlan struct {
	Day      string      `json:"day"`
	Occasion string      `json:"occasion"`
	Outfit   OutfitCombo `json:"outfit"`
}

type WeeklyPlan []DayPlan

var WeekdayOrder = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var weekdayRank = func() map[string]int {
	m := make(map[string]int, len(WeekdayOrder))
	for i, day := range WeekdayOrder {
		m[day] = i
	}
	return m
}()

// SortCanonical orders the plan Monday first regardless of the order the
// generation service produced the days in. Unknown day names sink to the end.
func (p WeeklyPlan) SortCanonical() {
	sort.SliceStable(p, func(i, j int) bool {
		ri, iok := weekdayRank[p[i].Day]
		rj, jok := weekdayRank[p[j].Day]
		if !iok {
			return false
		}
		if !jok {
			return true
		}
		return ri < rj
	})
}

// Validate checks the seven-entries-one-per-weekday invariant.
func (p WeeklyPlan) Validate() error {
	if len(p) != len(WeekdayOrder) {
		return fmt.Errorf("weekly plan has %d entries, want %d", len(p), len(WeekdayOrder))
	}
	seen := make(map[string]bool, len(p))
	for _, entry := range p {
		if _, ok := weekdayRank[entry.Day]; !ok {
			return fmt.Errorf("weekly plan has unknown day %q", entry.Day)
		}
		if seen[entry.Day] {
			return fmt.Errorf("weekly plan repeats day %q", entry.Day)
		}
		seen[entry.Day] = true
	}
	return nil
}

// OccasionWearResults is a flat set of combos for one occasion.
type OccasionWearResults []OutfitCombo

const (
	OccasionWearMinCombos = 3
	OccasionWearMaxCombos = 4
)

func (r OccasionWearResults) Validate() error {
	if len(r) < OccasionWearMinCombos || len(r) > OccasionWearMaxCombos {
		return fmt.Errorf("expected %d to %d occasion outfits, got %d", OccasionWearMinCombos, OccasionWearMaxCombos, len(r))
	}
	return nil
}

// PersonOutfit is one person's half of a coordinated set. It carries no id,
// occasion or image of its own, those live on the enclosing set.
type PersonOutfit struct {
	Top         *ProductSuggestion `json:"top,omitempty"`
	Bottom      *ProductSuggestion `json:"bottom,omitempty"`
	Dress       *ProductSuggestion `json:"dress,omitempty"`
	Shoes       ProductSuggestion  `json:"shoes"`
	Accessories ProductSuggestion  `json:"accessories"`
	Summary     string             `json:"summary"`
}

func (o *PersonOutfit) ValidateWearing() error {
	separates := o.Top != nil && o.Bottom != nil
	onePiece := o.Dress != nil
	if separates == onePiece {
		return fmt.Errorf("person outfit must be either separates or a one-piece")
	}
	return nil
}

// CoordinatedOutfitSet pairs two complementary outfits for a shared occasion.
// The image is shared at the set level and depicts both subjects together.
type CoordinatedOutfitSet struct {
	ID                    string       `json:"id"`
	Occasion              string       `json:"occasion"`
	Person1Outfit         PersonOutfit `json:"person1Outfit"`
	Person2Outfit         PersonOutfit `json:"person2Outfit"`
	CoordinationRationale string       `json:"coordinationRationale"`
	ImageURL              *string      `json:"imageUrl,omitempty"`
	ImageError            bool         `json:"imageError,omitempty"`
}

// CoordinatedAdvice holds exactly three sets: casual, formal, special event.
type CoordinatedAdvice struct {
	OverallSummary string                 `json:"overallSummary"`
	OutfitSets     []CoordinatedOutfitSet `json:"outfitSets"`
}

const CoordinatedSetCount = 3

// DetectedSubject is a short, non-identifying description of one person found
// in an uploaded photo (positional or visual cue only).
type DetectedSubject struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}
