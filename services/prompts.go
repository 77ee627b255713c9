package services

import (
	"fmt"
	"strings"

	"stylistapi/models"
)

// Prompt builders for the styling flows. Prompts restate the pieces of prior
// output they depend on so each request is self-contained.

const stylistSystemInstruction = "You are an expert AI fashion stylist. Ensure your advice is positive, encouraging, and respectful. Empty clothing slots must be filled with 'None' descriptions and 'Not applicable' product fields, never omitted. Each outfit is EITHER separates (top and bottom) OR a one-piece (dress), never both, never neither."

const (
	StylistTemperature float32 = 0.7
	StylistTopP        float32 = 0.9
)

// StyleContext appends optional per-session conditioning: which detected
// person to style when the photo has several, and the user's stated taste.
func StyleContext(subjectHint, preferences string) string {
	var b strings.Builder
	if subjectHint != "" {
		fmt.Fprintf(&b, " Focus exclusively on this person in the photo: %q.", subjectHint)
	}
	if preferences != "" {
		fmt.Fprintf(&b, " Take these style preferences into account: %s.", preferences)
	}
	return b.String()
}

func FashionAdvicePrompt() string {
	return "You are an expert AI fashion stylist. Analyze the person in this image and provide personalized fashion recommendations. Consider their apparent body type, face structure, skin tone, hair color, and estimated age to give detailed and helpful advice. Structure your response according to the provided JSON schema. Ensure your advice is positive, encouraging, and respectful."
}

func WeeklyPlanPrompt() string {
	return "You are an expert AI fashion stylist. Analyze the person in this image and build a complete outfit plan for one week, Monday through Sunday. Each day gets a distinct occasion (work, casual, evening out, errands, and similar everyday contexts) and one complete outfit for it. Consider the person's apparent body type, face structure, skin tone, hair color, and estimated age. Return exactly seven entries, one per weekday. Structure your response according to the provided JSON schema."
}

func OccasionWearPrompt(occasion string) string {
	return fmt.Sprintf("You are an expert AI fashion stylist. Analyze the person in this image and suggest at least 3 distinct complete outfits for the following occasion: %q. Every outfit's occasion field must be exactly %q. Consider the person's apparent body type, face structure, skin tone, hair color, and estimated age. Structure your response according to the provided JSON schema.", occasion, occasion)
}

func SubjectDetectionPrompt() string {
	return "Look at this photo and count the distinct people clearly visible in it. For each person, give a short label using only their position in the frame or clearly visible attire (for example 'Person on the left' or 'Person in the red jacket') and a brief description of their build and current clothing. Never guess names, identities, or any biometric detail. Structure your response according to the provided JSON schema."
}

func CoordinationPrompt(subject1, subject2 string) string {
	return fmt.Sprintf("You are an expert AI fashion stylist. This photo contains multiple people. Style the following two: %q and %q. Create exactly 3 coordinated outfit sets for them: one casual, one formal, and one special event. Within each set the two outfits must complement each other in color and style without matching exactly, and each must flatter its wearer's apparent body type and coloring. For each set explain the coordination rationale. Structure your response according to the provided JSON schema.", subject1, subject2)
}

func describeSlot(name string, p *models.ProductSuggestion) string {
	if p == nil || !p.IsPresent() {
		return ""
	}
	return fmt.Sprintf("%s: %s", name, p.Description)
}

func describeOutfit(top, bottom, dress *models.ProductSuggestion, shoes, accessories models.ProductSuggestion) string {
	var pieces []string
	for _, line := range []string{
		describeSlot("Top", top),
		describeSlot("Bottom", bottom),
		describeSlot("Dress", dress),
		describeSlot("Shoes", &shoes),
		describeSlot("Accessories", &accessories),
	} {
		if line != "" {
			pieces = append(pieces, line)
		}
	}
	return strings.Join(pieces, ". ")
}

// ComboImagePrompt builds the image-generation prompt for one combo. The
// reference photo is attached separately, the prompt only restates the look.
func ComboImagePrompt(combo *models.OutfitCombo) string {
	return fmt.Sprintf("Generate a photorealistic full-body image of the person from the reference photo wearing this outfit for %q: %s. Preserve the person's face, identity and likeness exactly as in the reference photo. Place them against a clean, neutral studio background with soft professional lighting. Output only the image.", combo.Occasion, describeOutfit(combo.Top, combo.Bottom, combo.Dress, combo.Shoes, combo.Accessories))
}

// CoordinatedSetImagePrompt renders both subjects of a set together.
func CoordinatedSetImagePrompt(set *models.CoordinatedOutfitSet, subject1, subject2 string) string {
	p1 := describeOutfit(set.Person1Outfit.Top, set.Person1Outfit.Bottom, set.Person1Outfit.Dress, set.Person1Outfit.Shoes, set.Person1Outfit.Accessories)
	p2 := describeOutfit(set.Person2Outfit.Top, set.Person2Outfit.Bottom, set.Person2Outfit.Dress, set.Person2Outfit.Shoes, set.Person2Outfit.Accessories)
	return fmt.Sprintf("Generate a photorealistic full-body image of the two people from the reference photo standing together, dressed for %q. %s wears: %s. %s wears: %s. Preserve both faces, identities and likenesses exactly as in the reference photo. Place them against a clean, neutral studio background with soft professional lighting. Output only the image.", set.Occasion, subject1, p1, subject2, p2)
}

// RegenerationPrompt conditions a single-combo re-roll on the previous result
// and the user's verdict on it.
func RegenerationPrompt(prev *models.OutfitCombo, rating *models.Rating) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert AI fashion stylist. Analyze the person in this image and create one new complete outfit for the occasion %q. The occasion field of your response must be exactly %q. The previous outfit for this occasion was: %s.", prev.Occasion, prev.Occasion, prev.Summary)
	if rating != nil {
		switch *rating {
		case models.RatingLike:
			b.WriteString(" The user liked the previous outfit, so stay in a similar vein but introduce a creative variation on it.")
		case models.RatingDislike:
			b.WriteString(" The user disliked the previous outfit, so avoid that direction entirely and propose something materially different in style, color and silhouette.")
		}
	}
	b.WriteString(" Structure your response according to the provided JSON schema.")
	return b.String()
}
