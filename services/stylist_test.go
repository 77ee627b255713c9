package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"stylistapi/models"
)

// modelMock replays canned structured responses in order and records every
// prompt, so assertions can check what the model was actually asked.
type modelMock struct {
	mu sync.Mutex

	queue         []string
	structuredErr error
	imageErr      func(prompt string) error

	requests     []StructuredRequest
	imagePrompts []string
}

func (m *modelMock) GenerateStructured(ctx context.Context, req StructuredRequest, modelName LLMModelName) (*LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.structuredErr != nil {
		return nil, m.structuredErr
	}
	if len(m.queue) == 0 {
		return nil, fmt.Errorf("mock: no structured response scripted for call %d", len(m.requests))
	}
	response := m.queue[0]
	m.queue = m.queue[1:]
	return &LLMResponse{Response: response, InputTokenCount: 10, OutputTokenCount: 13, TotalTokenCount: 23}, nil
}

func (m *modelMock) GenerateImage(ctx context.Context, prompt string, refs []ImageInput, modelName LLMModelName) (*LLMResponse, error) {
	m.mu.Lock()
	m.imagePrompts = append(m.imagePrompts, prompt)
	failer := m.imageErr
	m.mu.Unlock()
	if failer != nil {
		if err := failer(prompt); err != nil {
			return nil, err
		}
	}
	return &LLMResponse{Images: [][]byte{{0x89, 0x50, 0x4E, 0x47}}, InputTokenCount: 5, OutputTokenCount: 7, TotalTokenCount: 12}, nil
}

func productJSON(desc string) string {
	return fmt.Sprintf(`{"description": %q, "productName": "Linen Piece", "purchaseLink": "https://shop.example/item"}`, desc)
}

func noneProductJSON() string {
	return `{"description": "None", "productName": "Not applicable", "purchaseLink": "Not applicable"}`
}

func separatesComboJSON(occasion string) string {
	return fmt.Sprintf(`{
		"occasion": %q,
		"top": %s, "bottom": %s, "dress": %s,
		"shoes": %s, "accessories": %s,
		"summary": "A relaxed look"
	}`, occasion, productJSON("White shirt"), productJSON("Navy chinos"), noneProductJSON(), productJSON("Loafers"), productJSON("Leather watch"))
}

func dressComboJSON(occasion string) string {
	return fmt.Sprintf(`{
		"occasion": %q,
		"top": %s, "bottom": %s, "dress": %s,
		"shoes": %s, "accessories": %s,
		"summary": "An elegant look"
	}`, occasion, noneProductJSON(), noneProductJSON(), productJSON("Silk midi dress"), productJSON("Heels"), productJSON("Clutch"))
}

func adviceJSON(combos ...string) string {
	return fmt.Sprintf(`{
		"outfitSuggestions": [{"id": "", "style": "Smart Casual", "description": "Clean lines"}],
		"colorCombinations": [{"paletteName": "Coastal", "colors": ["#001f3f", "#ffffff"], "description": "Navy and white"}],
		"outfitCombos": [%s],
		"personalizedTips": ["Tuck in the shirt"]
	}`, strings.Join(combos, ","))
}

var testPhoto = ImageInput{Data: []byte("fakejpegbytes"), MIMEType: "image/jpeg"}

func TestFashionAdviceNormalization(t *testing.T) {
	mock := &modelMock{queue: []string{adviceJSON(separatesComboJSON("Office"), dressComboJSON("Evening"))}}
	stylist := NewStylist(mock)

	advice, usage, err := stylist.GetFashionAdvice(context.Background(), testPhoto)
	assert.NoError(t, err)
	assert.Len(t, advice.OutfitCombos, 2)

	office := advice.OutfitCombos[0]
	assert.NotEmpty(t, office.ID)
	assert.NotNil(t, office.Top)
	assert.NotNil(t, office.Bottom)
	assert.Nil(t, office.Dress)

	evening := advice.OutfitCombos[1]
	assert.Nil(t, evening.Top)
	assert.Nil(t, evening.Bottom)
	assert.NotNil(t, evening.Dress)
	assert.NotEqual(t, office.ID, evening.ID)

	// every combo settled with exactly one of image url / image error
	for _, combo := range advice.OutfitCombos {
		assert.True(t, combo.ImageSettled())
		assert.NotNil(t, combo.ImageURL)
		assert.False(t, combo.ImageError)
		assert.True(t, strings.HasPrefix(*combo.ImageURL, "data:image/png;base64,"))
	}

	// ids assigned by the suggestion fallback too
	assert.NotEmpty(t, advice.OutfitSuggestions[0].ID)

	// one text call plus one image call per combo
	assert.Equal(t, int32(10+5+5), usage.InputTokenCount)
	assert.Equal(t, int32(23+12+12), usage.TotalTokenCount)
}

func TestFashionAdviceImageFailureIsolation(t *testing.T) {
	mock := &modelMock{
		queue: []string{adviceJSON(separatesComboJSON("Office"), dressComboJSON("Evening"))},
		imageErr: func(prompt string) error {
			if strings.Contains(prompt, "Office") {
				return fmt.Errorf("image backend unavailable")
			}
			return nil
		},
	}
	stylist := NewStylist(mock)

	advice, _, err := stylist.GetFashionAdvice(context.Background(), testPhoto)
	assert.NoError(t, err)

	office := advice.OutfitCombos[0]
	assert.True(t, office.ImageError)
	assert.Nil(t, office.ImageURL)

	evening := advice.OutfitCombos[1]
	assert.False(t, evening.ImageError)
	assert.NotNil(t, evening.ImageURL)
}

func TestFashionAdviceFreshIDsAcrossRuns(t *testing.T) {
	fixture := adviceJSON(separatesComboJSON("Office"))
	mock := &modelMock{queue: []string{fixture, fixture}}
	stylist := NewStylist(mock)

	first, _, err := stylist.GetFashionAdvice(context.Background(), testPhoto)
	assert.NoError(t, err)
	second, _, err := stylist.GetFashionAdvice(context.Background(), testPhoto)
	assert.NoError(t, err)

	assert.NotEqual(t, first.OutfitCombos[0].ID, second.OutfitCombos[0].ID)
}

func TestFashionAdviceCarriesStyleContext(t *testing.T) {
	mock := &modelMock{queue: []string{adviceJSON(separatesComboJSON("Office"))}}
	stylist := NewStylist(mock)
	stylist.SubjectHint = "person on the left"
	stylist.Preferences = "prefers earth tones, no heels"

	_, _, err := stylist.GetFashionAdvice(context.Background(), testPhoto)
	assert.NoError(t, err)
	assert.Contains(t, mock.requests[0].Prompt, "person on the left")
	assert.Contains(t, mock.requests[0].Prompt, "prefers earth tones, no heels")
}

func TestFashionAdviceRejectsMixedWearing(t *testing.T) {
	broken := fmt.Sprintf(`{
		"occasion": "Office",
		"top": %s, "bottom": %s, "dress": %s,
		"shoes": %s, "accessories": %s,
		"summary": "Cannot wear all of this at once"
	}`, productJSON("Shirt"), productJSON("Chinos"), productJSON("Gown"), productJSON("Shoes"), productJSON("Watch"))
	mock := &modelMock{queue: []string{adviceJSON(broken)}}
	stylist := NewStylist(mock)

	_, _, err := stylist.GetFashionAdvice(context.Background(), testPhoto)
	assert.Error(t, err)
	// nothing to render means no image calls either
	assert.Empty(t, mock.imagePrompts)
}

func weeklyPlanJSON(days []string) string {
	entries := make([]string, 0, len(days))
	for _, day := range days {
		entries = append(entries, fmt.Sprintf(`{"day": %q, "occasion": "Errands", "outfit": %s}`, day, separatesComboJSON("Errands")))
	}
	return fmt.Sprintf(`{"weeklyPlan": [%s]}`, strings.Join(entries, ","))
}

func TestWeeklyPlanCanonicalOrder(t *testing.T) {
	shuffled := []string{"Thursday", "Monday", "Sunday", "Wednesday", "Friday", "Tuesday", "Saturday"}
	mock := &modelMock{queue: []string{weeklyPlanJSON(shuffled)}}
	stylist := NewStylist(mock)

	plan, _, err := stylist.GetWeeklyPlan(context.Background(), testPhoto)
	assert.NoError(t, err)
	assert.Len(t, plan, 7)
	for i, day := range models.WeekdayOrder {
		assert.Equal(t, day, plan[i].Day)
		assert.True(t, plan[i].Outfit.ImageSettled())
	}
}

func TestWeeklyPlanRejectsShortWeek(t *testing.T) {
	mock := &modelMock{queue: []string{weeklyPlanJSON([]string{"Monday", "Tuesday", "Wednesday"})}}
	stylist := NewStylist(mock)

	_, _, err := stylist.GetWeeklyPlan(context.Background(), testPhoto)
	assert.Error(t, err)
}

func TestOccasionWearPinsOccasion(t *testing.T) {
	// the model drifts from the requested occasion on purpose here
	payload := fmt.Sprintf(`{"outfitCombos": [%s, %s, %s]}`,
		separatesComboJSON("Office"), dressComboJSON("Brunch"), separatesComboJSON("Gala"))
	mock := &modelMock{queue: []string{payload}}
	stylist := NewStylist(mock)

	wear, _, err := stylist.GetOccasionWear(context.Background(), testPhoto, "Beach Wedding")
	assert.NoError(t, err)
	assert.Len(t, wear, 3)
	for _, combo := range wear {
		assert.Equal(t, "Beach Wedding", combo.Occasion)
	}
	assert.Contains(t, mock.requests[0].Prompt, "Beach Wedding")
}

func TestOccasionWearRejectsWrongCount(t *testing.T) {
	payload := fmt.Sprintf(`{"outfitCombos": [%s, %s]}`, separatesComboJSON("Office"), dressComboJSON("Office"))
	mock := &modelMock{queue: []string{payload}}
	stylist := NewStylist(mock)

	_, _, err := stylist.GetOccasionWear(context.Background(), testPhoto, "Beach Wedding")
	assert.Error(t, err)
	// an undersized result never reaches the image stage
	assert.Empty(t, mock.imagePrompts)
}

func TestRegenerateComboDislike(t *testing.T) {
	prevImage := "data:image/png;base64,b2xk"
	prev := &models.OutfitCombo{
		ID:       "prev-id",
		Occasion: "Office",
		Top:      &models.ProductSuggestion{Description: "Old shirt"},
		Bottom:   &models.ProductSuggestion{Description: "Old chinos"},
		Summary:  "The old look",
		ImageURL: &prevImage,
	}
	rating := models.RatingDislike
	mock := &modelMock{queue: []string{separatesComboJSON("whatever the model says")}}
	stylist := NewStylist(mock)

	fresh, _, err := stylist.RegenerateCombo(context.Background(), testPhoto, prev, &rating)
	assert.NoError(t, err)

	assert.NotEqual(t, prev.ID, fresh.ID)
	assert.Equal(t, "Office", fresh.Occasion)
	assert.Contains(t, mock.requests[0].Prompt, "materially different")
	assert.NotContains(t, mock.requests[0].Prompt, "similar vein")
}

func TestRegenerateComboLike(t *testing.T) {
	prev := &models.OutfitCombo{ID: "prev-id", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"}}
	rating := models.RatingLike
	mock := &modelMock{queue: []string{separatesComboJSON("Office")}}
	stylist := NewStylist(mock)

	_, _, err := stylist.RegenerateCombo(context.Background(), testPhoto, prev, &rating)
	assert.NoError(t, err)
	assert.Contains(t, mock.requests[0].Prompt, "similar vein")
}

func TestRegenerateComboUnrated(t *testing.T) {
	prev := &models.OutfitCombo{ID: "prev-id", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"}}
	mock := &modelMock{queue: []string{separatesComboJSON("Office")}}
	stylist := NewStylist(mock)

	_, _, err := stylist.RegenerateCombo(context.Background(), testPhoto, prev, nil)
	assert.NoError(t, err)
	assert.NotContains(t, mock.requests[0].Prompt, "similar vein")
	assert.NotContains(t, mock.requests[0].Prompt, "materially different")
}

func TestRegenerateComboImageFallback(t *testing.T) {
	prevImage := "data:image/png;base64,b2xk"
	prev := &models.OutfitCombo{ID: "prev-id", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"}, ImageURL: &prevImage}
	mock := &modelMock{
		queue:    []string{separatesComboJSON("Office")},
		imageErr: func(prompt string) error { return fmt.Errorf("image backend unavailable") },
	}
	stylist := NewStylist(mock)

	fresh, _, err := stylist.RegenerateCombo(context.Background(), testPhoto, prev, nil)
	assert.NoError(t, err)
	// the previous image stands in so the card never goes blank, but the
	// failure is still flagged so the client can offer another attempt
	assert.Equal(t, prevImage, *fresh.ImageURL)
	assert.True(t, fresh.ImageError)
}

func TestRegenerateComboImageErrorWithoutFallback(t *testing.T) {
	prev := &models.OutfitCombo{ID: "prev-id", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"}}
	mock := &modelMock{
		queue:    []string{separatesComboJSON("Office")},
		imageErr: func(prompt string) error { return fmt.Errorf("image backend unavailable") },
	}
	stylist := NewStylist(mock)

	fresh, _, err := stylist.RegenerateCombo(context.Background(), testPhoto, prev, nil)
	assert.NoError(t, err)
	assert.Nil(t, fresh.ImageURL)
	assert.True(t, fresh.ImageError)
}

func TestRegenerateComboTextFailure(t *testing.T) {
	prev := &models.OutfitCombo{ID: "prev-id", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"}}
	mock := &modelMock{structuredErr: fmt.Errorf("model overloaded")}
	stylist := NewStylist(mock)

	fresh, _, err := stylist.RegenerateCombo(context.Background(), testPhoto, prev, nil)
	assert.Error(t, err)
	assert.Nil(t, fresh)
	assert.Empty(t, mock.imagePrompts)
}

func personOutfitJSON() string {
	return fmt.Sprintf(`{"top": %s, "bottom": %s, "dress": %s, "shoes": %s, "accessories": %s, "summary": "Matched"}`,
		productJSON("Shirt"), productJSON("Trousers"), noneProductJSON(), productJSON("Sneakers"), productJSON("Cap"))
}

func coordinatedJSON(setCount int) string {
	sets := make([]string, 0, setCount)
	occasions := []string{"Casual", "Formal", "Special Event", "Extra"}
	for i := 0; i < setCount; i++ {
		sets = append(sets, fmt.Sprintf(`{"occasion": %q, "person1Outfit": %s, "person2Outfit": %s, "coordinationRationale": "Shared palette"}`,
			occasions[i], personOutfitJSON(), personOutfitJSON()))
	}
	return fmt.Sprintf(`{"overallSummary": "Coordinated without matching", "outfitSets": [%s]}`, strings.Join(sets, ","))
}

func TestCoordinatedAdviceExactlyThreeSets(t *testing.T) {
	mock := &modelMock{queue: []string{coordinatedJSON(3)}}
	stylist := NewStylist(mock)

	advice, _, err := stylist.GetCoordinatedAdvice(context.Background(), testPhoto, "person on the left", "person on the right")
	assert.NoError(t, err)
	assert.Len(t, advice.OutfitSets, models.CoordinatedSetCount)
	for _, set := range advice.OutfitSets {
		assert.NotEmpty(t, set.ID)
		assert.NotNil(t, set.ImageURL)
		assert.False(t, set.ImageError)
	}
	// one shared image per set, not one per person
	assert.Len(t, mock.imagePrompts, 3)
	assert.Contains(t, mock.requests[0].Prompt, "person on the left")
	assert.Contains(t, mock.requests[0].Prompt, "person on the right")
}

func TestCoordinatedAdviceWrongSetCount(t *testing.T) {
	mock := &modelMock{queue: []string{coordinatedJSON(2)}}
	stylist := NewStylist(mock)

	_, _, err := stylist.GetCoordinatedAdvice(context.Background(), testPhoto, "left", "right")
	assert.Error(t, err)
	assert.Empty(t, mock.imagePrompts)
}

func TestDetectSubjects(t *testing.T) {
	payload := `{"subjectCount": 2, "subjects": [
		{"label": "person on the left", "description": "wearing a red jacket"},
		{"label": "person on the right", "description": "wearing a striped shirt"}
	]}`
	mock := &modelMock{queue: []string{payload}}
	stylist := NewStylist(mock)

	subjects, _, err := stylist.DetectSubjects(context.Background(), testPhoto)
	assert.NoError(t, err)
	assert.Len(t, subjects, 2)
	assert.Equal(t, "person on the left", subjects[0].Label)
}
