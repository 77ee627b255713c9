package services

import "google.golang.org/genai"

// Response schemas passed to the model for structured JSON output. Empty
// clothing slots come back filled with "Not applicable"/"None" sentinels
// rather than being omitted, normalization strips those afterwards.

func productSuggestionSchema(slot string) *genai.Schema {
	return &genai.Schema{
		Type:        "object",
		Description: slot,
		Properties: map[string]*genai.Schema{
			"description": {
				Type:        "string",
				Description: "Description of the item. 'None' if this slot is not part of the outfit.",
			},
			"productName": {
				Type:        "string",
				Description: "A specific, plausible product name. 'Not applicable' if no concrete product fits.",
			},
			"purchaseLink": {
				Type:        "string",
				Description: "A plausible retailer search URL for the product. 'Not applicable' if none.",
			},
		},
		Required: []string{"description", "productName", "purchaseLink"},
	}
}

func outfitComboSchema() *genai.Schema {
	return &genai.Schema{
		Type: "object",
		Properties: map[string]*genai.Schema{
			"occasion": {
				Type:        "string",
				Description: "The occasion for the outfit (e.g., 'Weekend Brunch').",
			},
			"top":    productSuggestionSchema("Top wear. Use 'None' description when the outfit is a one-piece."),
			"bottom": productSuggestionSchema("Bottom wear. Use 'None' description when the outfit is a one-piece."),
			"dress":  productSuggestionSchema("One-piece such as a dress or jumpsuit. Use 'None' description when the outfit is separates."),
			"shoes":  productSuggestionSchema("Footwear."),
			"accessories": productSuggestionSchema(
				"Accessories (e.g., 'watch, sunglasses'). Use 'None' description when no accessories fit."),
			"summary": {
				Type:        "string",
				Description: "One or two sentences describing the complete look.",
			},
		},
		Required: []string{"occasion", "top", "bottom", "dress", "shoes", "accessories", "summary"},
	}
}

func FashionAdviceSchema() *genai.Schema {
	return &genai.Schema{
		Type: "object",
		Properties: map[string]*genai.Schema{
			"outfitSuggestions": {
				Type:        "array",
				Description: "Recommend clothing styles (e.g., casual, formal, party wear) that match the user's body type, face structure, and apparent age group.",
				Items: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"id": {
							Type:        "string",
							Description: "A unique identifier for this specific outfit suggestion (e.g., 'outfit-1').",
						},
						"style": {
							Type:        "string",
							Description: "The name of the clothing style (e.g., 'Business Casual').",
						},
						"description": {
							Type:        "string",
							Description: "A detailed description of why this style is suitable.",
						},
					},
					Required: []string{"id", "style", "description"},
				},
			},
			"colorCombinations": {
				Type:        "array",
				Description: "Suggest color palettes for clothing, accessories, and footwear that complement the user's skin tone and hair color.",
				Items: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"paletteName": {
							Type:        "string",
							Description: "The name of the color palette (e.g., 'Earthy Tones').",
						},
						"colors": {
							Type:        "array",
							Items:       &genai.Schema{Type: "string"},
							Description: "A list of complementary colors within the palette.",
						},
						"description": {
							Type:        "string",
							Description: "Explanation of why this palette works for the user.",
						},
					},
					Required: []string{"paletteName", "colors", "description"},
				},
			},
			"outfitCombos": {
				Type:        "array",
				Description: "Provide at least 3 complete outfit combinations suitable for different occasions.",
				Items:       outfitComboSchema(),
			},
			"personalizedTips": {
				Type:        "array",
				Description: "Give specific styling tips such as hairstyle, accessories, or patterns that enhance their overall look.",
				Items:       &genai.Schema{Type: "string"},
			},
		},
		Required: []string{"outfitSuggestions", "colorCombinations", "outfitCombos", "personalizedTips"},
	}
}

func WeeklyPlanSchema() *genai.Schema {
	return &genai.Schema{
		Type: "object",
		Properties: map[string]*genai.Schema{
			"weeklyPlan": {
				Type:        "array",
				Description: "Exactly seven entries, one per weekday Monday through Sunday.",
				Items: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"day": {
							Type:        "string",
							Description: "The weekday name in English (e.g., 'Monday').",
						},
						"occasion": {
							Type:        "string",
							Description: "The occasion this day's outfit is built for.",
						},
						"outfit": outfitComboSchema(),
					},
					Required: []string{"day", "occasion", "outfit"},
				},
			},
		},
		Required: []string{"weeklyPlan"},
	}
}

func OccasionWearSchema() *genai.Schema {
	return &genai.Schema{
		Type: "object",
		Properties: map[string]*genai.Schema{
			"outfitCombos": {
				Type:        "array",
				Description: "At least 3 distinct outfit combinations for the requested occasion.",
				Items:       outfitComboSchema(),
			},
		},
		Required: []string{"outfitCombos"},
	}
}

func SingleComboSchema() *genai.Schema {
	return outfitComboSchema()
}

func personOutfitSchema(person string) *genai.Schema {
	return &genai.Schema{
		Type:        "object",
		Description: person,
		Properties: map[string]*genai.Schema{
			"top":    productSuggestionSchema("Top wear. Use 'None' description when the outfit is a one-piece."),
			"bottom": productSuggestionSchema("Bottom wear. Use 'None' description when the outfit is a one-piece."),
			"dress":  productSuggestionSchema("One-piece such as a dress or jumpsuit. Use 'None' description when the outfit is separates."),
			"shoes":  productSuggestionSchema("Footwear."),
			"accessories": productSuggestionSchema(
				"Accessories. Use 'None' description when no accessories fit."),
			"summary": {
				Type:        "string",
				Description: "One or two sentences describing this person's look.",
			},
		},
		Required: []string{"top", "bottom", "dress", "shoes", "accessories", "summary"},
	}
}

func CoordinatedAdviceSchema() *genai.Schema {
	return &genai.Schema{
		Type: "object",
		Properties: map[string]*genai.Schema{
			"overallSummary": {
				Type:        "string",
				Description: "A short summary of the coordination approach for the pair.",
			},
			"outfitSets": {
				Type:        "array",
				Description: "Exactly 3 coordinated sets: one casual, one formal, one special event.",
				Items: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"occasion": {
							Type:        "string",
							Description: "The shared occasion (e.g., 'Casual Weekend', 'Formal Dinner', 'Wedding Guest').",
						},
						"person1Outfit": personOutfitSchema("Outfit for the first selected person."),
						"person2Outfit": personOutfitSchema("Outfit for the second selected person."),
						"coordinationRationale": {
							Type:        "string",
							Description: "Why the two outfits complement each other without matching exactly.",
						},
					},
					Required: []string{"occasion", "person1Outfit", "person2Outfit", "coordinationRationale"},
				},
			},
		},
		Required: []string{"overallSummary", "outfitSets"},
	}
}

func SubjectDetectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: "object",
		Properties: map[string]*genai.Schema{
			"subjectCount": {
				Type:        "integer",
				Description: "How many distinct people are clearly visible in the photo.",
			},
			"subjects": {
				Type:        "array",
				Description: "One entry per visible person, identified only by position or visible attire, never by guessed identity.",
				Items: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"label": {
							Type:        "string",
							Description: "A short positional or visual label (e.g., 'Person on the left', 'Person in the red jacket').",
						},
						"description": {
							Type:        "string",
							Description: "A brief non-identifying description of the person's build and current attire.",
						},
					},
					Required: []string{"label", "description"},
				},
			},
		},
		Required: []string{"subjectCount", "subjects"},
	}
}
