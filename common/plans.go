package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PlanSeed describes one entry of the bootstrap plan catalog. Seeds are
// mirrored into the gateway as a product+price pair on first run.
type PlanSeed struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	PriceCents      int64    `json:"priceCents"`
	Currency        string   `json:"currency"`
	Interval        string   `json:"interval"` // "month" or "year"
	IntervalCount   int      `json:"intervalCount"`
	TrialPeriodDays int      `json:"trialPeriodDays"`
	MaxClinics      int      `json:"maxClinics"`
	MaxUsers        int      `json:"maxUsers"`
	MaxPatients     int      `json:"maxPatients"`
	Features        []string `json:"features"`
	IsDefault       bool     `json:"isDefault"`
}

func LoadPlanSeeds(cfgDir string) ([]PlanSeed, error) {
	buf, err := os.ReadFile(filepath.Join(cfgDir, DEFAULT_PLANS_FILE))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DEFAULT_PLANS_FILE, err)
	}

	var seeds []PlanSeed
	if err := json.Unmarshal(buf, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DEFAULT_PLANS_FILE, err)
	}

	return seeds, nil
}

func GetPlanSeed(seeds []PlanSeed, name string) *PlanSeed {
	for _, seed := range seeds {
		if seed.Name == name {
			return &seed
		}
	}
	return nil
}
