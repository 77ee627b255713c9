package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"stylistapi/models"
)

// Stylist runs the styling flows: one structured text generation, then a
// parallel image generation per outfit. Image failures never fail the flow,
// each slot settles independently with either an image or an error mark.
type Stylist struct {
	Model      StylistModel
	TextModel  LLMModelName
	ImageModel LLMModelName

	// optional conditioning for the single-person flows
	SubjectHint string
	Preferences string
}

func NewStylist(model StylistModel) *Stylist {
	return &Stylist{
		Model:      model,
		TextModel:  Flash25,
		ImageModel: Flash25Image,
	}
}

// GenerationUsage accumulates token counts across the calls of one flow.
type GenerationUsage struct {
	mu               sync.Mutex
	InputTokenCount  int32
	OutputTokenCount int32
	TotalTokenCount  int32
}

func (u *GenerationUsage) add(resp *LLMResponse) {
	if resp == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.InputTokenCount += resp.InputTokenCount
	u.OutputTokenCount += resp.OutputTokenCount
	u.TotalTokenCount += resp.TotalTokenCount
}

// rawProduct mirrors the schema shape, every slot is present and empty slots
// carry the sentinel values.
type rawProduct struct {
	Description  string `json:"description"`
	ProductName  string `json:"productName"`
	PurchaseLink string `json:"purchaseLink"`
}

func (r rawProduct) toModel() models.ProductSuggestion {
	return models.ProductSuggestion{
		Description:  r.Description,
		ProductName:  r.ProductName,
		PurchaseLink: r.PurchaseLink,
	}
}

func (r rawProduct) present() bool {
	return r.toModel().IsPresent()
}

type rawCombo struct {
	Occasion    string     `json:"occasion"`
	Top         rawProduct `json:"top"`
	Bottom      rawProduct `json:"bottom"`
	Dress       rawProduct `json:"dress"`
	Shoes       rawProduct `json:"shoes"`
	Accessories rawProduct `json:"accessories"`
	Summary     string     `json:"summary"`
}

// normalize maps sentinel-filled slots to absent pointers, assigns a fresh
// local id and enforces the separates-or-one-piece shape.
func (r rawCombo) normalize() (models.OutfitCombo, error) {
	combo := models.OutfitCombo{
		ID:          uuid.NewString(),
		Occasion:    r.Occasion,
		Shoes:       r.Shoes.toModel(),
		Accessories: r.Accessories.toModel(),
		Summary:     r.Summary,
	}
	if r.Top.present() {
		top := r.Top.toModel()
		combo.Top = &top
	}
	if r.Bottom.present() {
		bottom := r.Bottom.toModel()
		combo.Bottom = &bottom
	}
	if r.Dress.present() {
		dress := r.Dress.toModel()
		combo.Dress = &dress
	}
	if err := combo.ValidateWearing(); err != nil {
		return models.OutfitCombo{}, err
	}
	return combo, nil
}

type rawPersonOutfit struct {
	Top         rawProduct `json:"top"`
	Bottom      rawProduct `json:"bottom"`
	Dress       rawProduct `json:"dress"`
	Shoes       rawProduct `json:"shoes"`
	Accessories rawProduct `json:"accessories"`
	Summary     string     `json:"summary"`
}

func (r rawPersonOutfit) normalize() (models.PersonOutfit, error) {
	outfit := models.PersonOutfit{
		Shoes:       r.Shoes.toModel(),
		Accessories: r.Accessories.toModel(),
		Summary:     r.Summary,
	}
	if r.Top.present() {
		top := r.Top.toModel()
		outfit.Top = &top
	}
	if r.Bottom.present() {
		bottom := r.Bottom.toModel()
		outfit.Bottom = &bottom
	}
	if r.Dress.present() {
		dress := r.Dress.toModel()
		outfit.Dress = &dress
	}
	if err := outfit.ValidateWearing(); err != nil {
		return models.PersonOutfit{}, err
	}
	return outfit, nil
}

func normalizeCombos(raw []rawCombo) ([]models.OutfitCombo, error) {
	combos := make([]models.OutfitCombo, 0, len(raw))
	for _, rc := range raw {
		combo, err := rc.normalize()
		if err != nil {
			return nil, err
		}
		combos = append(combos, combo)
	}
	return combos, nil
}

func (s *Stylist) generateStructuredJSON(ctx context.Context, req StructuredRequest, usage *GenerationUsage, out any) error {
	resp, err := s.Model.GenerateStructured(ctx, req, s.TextModel)
	if err != nil {
		return err
	}
	usage.add(resp)
	cleaned := CleanJSONResponse(resp.Response)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to parse styling response: %v", err)
	}
	return nil
}

// populateComboImages fans out one image generation per combo and joins on
// all of them. Each goroutine owns exactly one slot, a failed slot gets
// ImageError while its siblings settle normally.
func (s *Stylist) populateComboImages(ctx context.Context, photo ImageInput, combos []*models.OutfitCombo, usage *GenerationUsage) {
	var wg sync.WaitGroup
	for i := range combos {
		wg.Add(1)
		go func(combo *models.OutfitCombo) {
			defer wg.Done()
			resp, err := s.Model.GenerateImage(ctx, ComboImagePrompt(combo), []ImageInput{photo}, s.ImageModel)
			usage.add(resp)
			if err != nil {
				sentry.CaptureException(fmt.Errorf("outfit image generation failed for %q: %v", combo.Occasion, err))
				combo.ImageError = true
				return
			}
			if resp == nil || len(resp.Images) == 0 {
				sentry.CaptureException(fmt.Errorf("outfit image generation returned no image for %q", combo.Occasion))
				combo.ImageError = true
				return
			}
			uri := ImageDataURI(resp.Images[0], "image/png")
			combo.ImageURL = &uri
		}(combos[i])
	}
	wg.Wait()
}

// GetFashionAdvice is the primary flow: structured advice for one person,
// then one generated image per outfit combo.
func (s *Stylist) GetFashionAdvice(ctx context.Context, photo ImageInput) (*models.FashionAdvice, *GenerationUsage, error) {
	usage := &GenerationUsage{}

	var raw struct {
		OutfitSuggestions []models.OutfitSuggestion `json:"outfitSuggestions"`
		ColorCombinations []models.ColorCombination `json:"colorCombinations"`
		OutfitCombos      []rawCombo                `json:"outfitCombos"`
		PersonalizedTips  []string                  `json:"personalizedTips"`
	}
	err := s.generateStructuredJSON(ctx, StructuredRequest{
		SystemInstruction: stylistSystemInstruction,
		Prompt:            FashionAdvicePrompt() + StyleContext(s.SubjectHint, s.Preferences),
		Images:            []ImageInput{photo},
		Schema:            FashionAdviceSchema(),
		Temperature:       StylistTemperature,
		TopP:              StylistTopP,
	}, usage, &raw)
	if err != nil {
		return nil, usage, err
	}

	combos, err := normalizeCombos(raw.OutfitCombos)
	if err != nil {
		return nil, usage, err
	}

	for i := range raw.OutfitSuggestions {
		if raw.OutfitSuggestions[i].ID == "" {
			raw.OutfitSuggestions[i].ID = uuid.NewString()
		}
	}

	advice := &models.FashionAdvice{
		OutfitSuggestions: raw.OutfitSuggestions,
		ColorCombinations: raw.ColorCombinations,
		OutfitCombos:      combos,
		PersonalizedTips:  raw.PersonalizedTips,
	}

	targets := make([]*models.OutfitCombo, len(advice.OutfitCombos))
	for i := range advice.OutfitCombos {
		targets[i] = &advice.OutfitCombos[i]
	}
	s.populateComboImages(ctx, photo, targets, usage)

	return advice, usage, nil
}

// GetWeeklyPlan builds one outfit per weekday, always returned Monday first.
func (s *Stylist) GetWeeklyPlan(ctx context.Context, photo ImageInput) (models.WeeklyPlan, *GenerationUsage, error) {
	usage := &GenerationUsage{}

	var raw struct {
		WeeklyPlan []struct {
			Day      string   `json:"day"`
			Occasion string   `json:"occasion"`
			Outfit   rawCombo `json:"outfit"`
		} `json:"weeklyPlan"`
	}
	err := s.generateStructuredJSON(ctx, StructuredRequest{
		SystemInstruction: stylistSystemInstruction,
		Prompt:            WeeklyPlanPrompt() + StyleContext(s.SubjectHint, s.Preferences),
		Images:            []ImageInput{photo},
		Schema:            WeeklyPlanSchema(),
		Temperature:       StylistTemperature,
		TopP:              StylistTopP,
	}, usage, &raw)
	if err != nil {
		return nil, usage, err
	}

	plan := make(models.WeeklyPlan, 0, len(raw.WeeklyPlan))
	for _, day := range raw.WeeklyPlan {
		outfit, err := day.Outfit.normalize()
		if err != nil {
			return nil, usage, err
		}
		if outfit.Occasion == "" {
			outfit.Occasion = day.Occasion
		}
		plan = append(plan, models.DayPlan{
			Day:      day.Day,
			Occasion: day.Occasion,
			Outfit:   outfit,
		})
	}
	if err := plan.Validate(); err != nil {
		return nil, usage, err
	}
	plan.SortCanonical()

	targets := make([]*models.OutfitCombo, len(plan))
	for i := range plan {
		targets[i] = &plan[i].Outfit
	}
	s.populateComboImages(ctx, photo, targets, usage)

	return plan, usage, nil
}

// GetOccasionWear suggests multiple outfits for one pinned occasion.
func (s *Stylist) GetOccasionWear(ctx context.Context, photo ImageInput, occasion string) (models.OccasionWearResults, *GenerationUsage, error) {
	usage := &GenerationUsage{}

	var raw struct {
		OutfitCombos []rawCombo `json:"outfitCombos"`
	}
	err := s.generateStructuredJSON(ctx, StructuredRequest{
		SystemInstruction: stylistSystemInstruction,
		Prompt:            OccasionWearPrompt(occasion) + StyleContext(s.SubjectHint, s.Preferences),
		Images:            []ImageInput{photo},
		Schema:            OccasionWearSchema(),
		Temperature:       StylistTemperature,
		TopP:              StylistTopP,
	}, usage, &raw)
	if err != nil {
		return nil, usage, err
	}

	combos, err := normalizeCombos(raw.OutfitCombos)
	if err != nil {
		return nil, usage, err
	}
	if err := models.OccasionWearResults(combos).Validate(); err != nil {
		return nil, usage, err
	}
	// the occasion is pinned by the caller, not trusted from the response
	for i := range combos {
		combos[i].Occasion = occasion
	}

	targets := make([]*models.OutfitCombo, len(combos))
	for i := range combos {
		targets[i] = &combos[i]
	}
	s.populateComboImages(ctx, photo, targets, usage)

	return combos, usage, nil
}

// RegenerateCombo re-rolls a single combo conditioned on the previous result
// and the user's rating of it. A text failure leaves the caller's state
// untouched. An image failure sets ImageError and falls back to the previous
// combo's image when one exists.
func (s *Stylist) RegenerateCombo(ctx context.Context, photo ImageInput, prev *models.OutfitCombo, rating *models.Rating) (*models.OutfitCombo, *GenerationUsage, error) {
	usage := &GenerationUsage{}

	var raw rawCombo
	err := s.generateStructuredJSON(ctx, StructuredRequest{
		SystemInstruction: stylistSystemInstruction,
		Prompt:            RegenerationPrompt(prev, rating) + StyleContext(s.SubjectHint, s.Preferences),
		Images:            []ImageInput{photo},
		Schema:            SingleComboSchema(),
		Temperature:       StylistTemperature,
		TopP:              StylistTopP,
	}, usage, &raw)
	if err != nil {
		return nil, usage, err
	}

	combo, err := raw.normalize()
	if err != nil {
		return nil, usage, err
	}
	combo.Occasion = prev.Occasion

	resp, imgErr := s.Model.GenerateImage(ctx, ComboImagePrompt(&combo), []ImageInput{photo}, s.ImageModel)
	usage.add(resp)
	if imgErr != nil || resp == nil || len(resp.Images) == 0 {
		if imgErr != nil {
			sentry.CaptureException(fmt.Errorf("regeneration image failed for %q: %v", combo.Occasion, imgErr))
		}
		// reuse the previous image rather than show a blank card, but keep
		// the error flag so the client still offers a retry
		if prev.ImageURL != nil {
			combo.ImageURL = prev.ImageURL
		}
		combo.ImageError = true
		return &combo, usage, nil
	}

	uri := ImageDataURI(resp.Images[0], "image/png")
	combo.ImageURL = &uri
	return &combo, usage, nil
}

// DetectSubjects finds the people in a photo, described only by position or
// visible attire.
func (s *Stylist) DetectSubjects(ctx context.Context, photo ImageInput) ([]models.DetectedSubject, *GenerationUsage, error) {
	usage := &GenerationUsage{}

	var raw struct {
		SubjectCount int                      `json:"subjectCount"`
		Subjects     []models.DetectedSubject `json:"subjects"`
	}
	err := s.generateStructuredJSON(ctx, StructuredRequest{
		Prompt:      SubjectDetectionPrompt(),
		Images:      []ImageInput{photo},
		Schema:      SubjectDetectionSchema(),
		Temperature: 0.2,
		TopP:        StylistTopP,
	}, usage, &raw)
	if err != nil {
		return nil, usage, err
	}
	if raw.SubjectCount != len(raw.Subjects) {
		fmt.Println("Subject count mismatch:", raw.SubjectCount, "vs", len(raw.Subjects))
	}
	return raw.Subjects, usage, nil
}

// GetCoordinatedAdvice styles two chosen subjects from one photo with exactly
// three coordinated sets, one shared image per set.
func (s *Stylist) GetCoordinatedAdvice(ctx context.Context, photo ImageInput, subject1, subject2 string) (*models.CoordinatedAdvice, *GenerationUsage, error) {
	usage := &GenerationUsage{}

	var raw struct {
		OverallSummary string `json:"overallSummary"`
		OutfitSets     []struct {
			Occasion              string          `json:"occasion"`
			Person1Outfit         rawPersonOutfit `json:"person1Outfit"`
			Person2Outfit         rawPersonOutfit `json:"person2Outfit"`
			CoordinationRationale string          `json:"coordinationRationale"`
		} `json:"outfitSets"`
	}
	err := s.generateStructuredJSON(ctx, StructuredRequest{
		SystemInstruction: stylistSystemInstruction,
		Prompt:            CoordinationPrompt(subject1, subject2),
		Images:            []ImageInput{photo},
		Schema:            CoordinatedAdviceSchema(),
		Temperature:       StylistTemperature,
		TopP:              StylistTopP,
	}, usage, &raw)
	if err != nil {
		return nil, usage, err
	}

	if len(raw.OutfitSets) != models.CoordinatedSetCount {
		return nil, usage, fmt.Errorf("coordinated advice has %d outfit sets, want %d", len(raw.OutfitSets), models.CoordinatedSetCount)
	}

	advice := &models.CoordinatedAdvice{
		OverallSummary: raw.OverallSummary,
		OutfitSets:     make([]models.CoordinatedOutfitSet, 0, len(raw.OutfitSets)),
	}
	for _, rs := range raw.OutfitSets {
		p1, err := rs.Person1Outfit.normalize()
		if err != nil {
			return nil, usage, err
		}
		p2, err := rs.Person2Outfit.normalize()
		if err != nil {
			return nil, usage, err
		}
		advice.OutfitSets = append(advice.OutfitSets, models.CoordinatedOutfitSet{
			ID:                    uuid.NewString(),
			Occasion:              rs.Occasion,
			Person1Outfit:         p1,
			Person2Outfit:         p2,
			CoordinationRationale: rs.CoordinationRationale,
		})
	}

	// one shared image per set, both subjects rendered together
	var wg sync.WaitGroup
	for i := range advice.OutfitSets {
		wg.Add(1)
		go func(set *models.CoordinatedOutfitSet) {
			defer wg.Done()
			resp, err := s.Model.GenerateImage(ctx, CoordinatedSetImagePrompt(set, subject1, subject2), []ImageInput{photo}, s.ImageModel)
			usage.add(resp)
			if err != nil {
				sentry.CaptureException(fmt.Errorf("coordinated image generation failed for %q: %v", set.Occasion, err))
				set.ImageError = true
				return
			}
			if resp == nil || len(resp.Images) == 0 {
				sentry.CaptureException(fmt.Errorf("coordinated image generation returned no image for %q", set.Occasion))
				set.ImageError = true
				return
			}
			uri := ImageDataURI(resp.Images[0], "image/png")
			set.ImageURL = &uri
		}(&advice.OutfitSets[i])
	}
	wg.Wait()

	return advice, usage, nil
}
