package entity

import (
	"math"
	"testing"
)

func TestSupplierDetermineRating(t *testing.T) {
	tests := []struct {
		name        string
		quality     float64
		delivery    float64
		price       float64
		service     float64
		wantOverall float64
		wantRating  string
	}{
		{"满分评A", 100, 100, 100, 100, 100, SupplierRatingA},
		{"加权93.5评A", 95, 95, 90, 90, 93.5, SupplierRatingA},
		{"加权76评B", 80, 80, 70, 60, 76, SupplierRatingB},
		{"加权65评C", 70, 65, 60, 55, 65, SupplierRatingC},
		{"低分评D", 50, 50, 50, 50, 50, SupplierRatingD},
		{"零分评D", 0, 0, 0, 0, 0, SupplierRatingD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Supplier{
				QualityScore:  tt.quality,
				DeliveryScore: tt.delivery,
				PriceScore:    tt.price,
				ServiceScore:  tt.service,
			}
			s.DetermineRating()
			if math.Abs(s.OverallScore-tt.wantOverall) > 1e-9 {
				t.Errorf("Expected overall %v, got %v", tt.wantOverall, s.OverallScore)
			}
			if s.Rating != tt.wantRating {
				t.Errorf("Expected rating %s, got %s", tt.wantRating, s.Rating)
			}
		})
	}
}
