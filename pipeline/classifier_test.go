package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyGarment(t *testing.T) {
	tests := []struct {
		category string
		want     GarmentType
	}{
		// one-piece keywords win over top keywords
		{"Dress Shirt", GarmentOnePiece},
		{"Summer Jumpsuit", GarmentOnePiece},
		{"Floral Romper", GarmentOnePiece},
		{"Maxi dress", GarmentOnePiece},

		{"T-Shirt", GarmentTops},
		{"Linen Blouse", GarmentTops},
		{"Oversized Hoodie", GarmentTops},
		{"Denim Jacket", GarmentTops},
		{"Wool Coat", GarmentTops},
		{"BLAZER", GarmentTops},
		{"Crop Top", GarmentTops},
		{"Tank", GarmentTops},
		{"Knit Sweater", GarmentTops},

		{"Palazzo Pants", GarmentBottoms},
		{"Trousers", GarmentBottoms},
		{"Mom Jeans", GarmentBottoms},
		{"Cargo Shorts", GarmentBottoms},
		{"Pleated Skirt", GarmentBottoms},
		{"Yoga Leggings", GarmentBottoms},

		// anything unrecognised falls through to auto
		{"Silk Scarf", GarmentAuto},
		{"Leather Belt", GarmentAuto},
		{"", GarmentAuto},
		{"   ", GarmentAuto},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyGarment(tt.category))
		})
	}
}

func TestClassifyGender(t *testing.T) {
	tests := []struct {
		label string
		want  ModelGender
	}{
		{"Women's Jeans", GenderFemale},
		{"womens", GenderFemale},
		{"female", GenderFemale},
		{"FEMALE", GenderFemale},
		{"Men's Shirt", GenderMale},
		{"male", GenderMale},
		{"menswear", GenderMale},
		{"unisex", GenderUnisex},
		{"kids", GenderUnisex},
		{"", GenderUnisex},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyGender(tt.label))
		})
	}
}

// The substring trap: "women" contains "men", so female keywords must be
// checked first or every women's listing would get a male model.
func TestClassifyGenderFemaleBeforeMale(t *testing.T) {
	assert.Equal(t, GenderFemale, ClassifyGender("women"))
	assert.Equal(t, GenderFemale, ClassifyGender("Womenswear"))
}
