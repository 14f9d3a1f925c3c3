package pipeline

import "strings"

// GarmentType is the garment slot the overlay service composites.
type GarmentType string

const (
	GarmentTops     GarmentType = "tops"
	GarmentBottoms  GarmentType = "bottoms"
	GarmentOnePiece GarmentType = "one-pieces"
	GarmentAuto     GarmentType = "auto"
)

// ModelGender selects which fashion models suit a listing.
type ModelGender string

const (
	GenderMale   ModelGender = "male"
	GenderFemale ModelGender = "female"
	GenderUnisex ModelGender = "unisex"
)

// garmentKeywords is ordered: the first bucket with a hit wins, so
// "Dress Shirt" classifies as a one-piece, not a top.
var garmentKeywords = []struct {
	garment  GarmentType
	keywords []string
}{
	{GarmentOnePiece, []string{"dress", "jumpsuit", "romper"}},
	{GarmentTops, []string{"shirt", "top", "blouse", "t-shirt", "tank", "sweater", "hoodie", "jacket", "coat", "blazer"}},
	{GarmentBottoms, []string{"pants", "trouser", "jeans", "shorts", "skirt", "legging"}},
}

// ClassifyGarment maps a free-form category label to the garment slot the
// overlay service understands. Unknown labels fall through to auto, which
// lets the service pick.
func ClassifyGarment(category string) GarmentType {
	c := strings.ToLower(category)
	for _, bucket := range garmentKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(c, kw) {
				return bucket.garment
			}
		}
	}
	return GarmentAuto
}

// ClassifyGender picks the model gender for a label. The female keywords
// are checked first: "women" contains "men" and "female" contains "male",
// so the other order would never match female.
func ClassifyGender(text string) ModelGender {
	t := strings.ToLower(text)
	for _, kw := range []string{"women", "female"} {
		if strings.Contains(t, kw) {
			return GenderFemale
		}
	}
	for _, kw := range []string{"men", "male"} {
		if strings.Contains(t, kw) {
			return GenderMale
		}
	}
	return GenderUnisex
}
