package chart

import (
	"strings"
	"testing"
	"time"

	"github.com/openmarkets/totem/internal/model"
)

func history(prices ...float64) []model.PricePoint {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	points := make([]model.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = model.PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			PriceYes:  p,
		}
	}
	return points
}

func TestRenderPriceChart(t *testing.T) {
	out := RenderPriceChart(history(0.5, 0.52, 0.55, 0.61, 0.58), 60, 15)

	if !strings.Contains(out, "YES Price") {
		t.Errorf("missing title in output:\n%s", out)
	}
	if !strings.Contains(out, "█") {
		t.Errorf("no plotted points in output:\n%s", out)
	}
	if !strings.Contains(out, "10:00") || !strings.Contains(out, "10:04") {
		t.Errorf("missing time labels in output:\n%s", out)
	}
}

func TestRenderPriceChartEmpty(t *testing.T) {
	out := RenderPriceChart(nil, 0, 0)
	if out != "No price data available" {
		t.Errorf("RenderPriceChart(nil) = %q", out)
	}
}

func TestRenderSimpleBar(t *testing.T) {
	out := RenderSimpleBar(0.7, 0.3, 50)
	if !strings.Contains(out, "YES  70.0%") {
		t.Errorf("missing YES label:\n%s", out)
	}
	if !strings.Contains(out, "NO   30.0%") {
		t.Errorf("missing NO label:\n%s", out)
	}
}

func TestSamplePoints(t *testing.T) {
	points := history(make([]float64, 200)...)
	sampled := samplePoints(points, 50)
	if len(sampled) != 50 {
		t.Errorf("samplePoints returned %d points, want 50", len(sampled))
	}

	small := history(0.4, 0.5, 0.6)
	if got := samplePoints(small, 50); len(got) != 3 {
		t.Errorf("samplePoints on small input returned %d points, want 3", len(got))
	}
}
