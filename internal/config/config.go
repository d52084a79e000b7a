package config

const (
	DefaultTimeZone = "UTC"

	// Matching engine tunables. Date window and tie-break margin are
	// deployment configuration, overridable via services.yaml.
	DefaultMatchDateWindowDays = 3
	DefaultFuzzyScoreMargin    = 0.15
	DefaultFuzzyMinScore       = 0.5

	// Staging cleanup job
	DefaultStagingRetentionDays = 7
	DefaultStagingPurgeSchedule = "30 2 * * *"
)

// MatchTuning carries the matching-engine knobs threaded into the engine.
type MatchTuning struct {
	DateWindowDays int
	ScoreMargin    float64
	MinScore       float64
}

func DefaultMatchTuning() MatchTuning {
	return MatchTuning{
		DateWindowDays: DefaultMatchDateWindowDays,
		ScoreMargin:    DefaultFuzzyScoreMargin,
		MinScore:       DefaultFuzzyMinScore,
	}
}

// TuningFromServiceConfig overrides tuning from a services.yaml config map.
func TuningFromServiceConfig(cfg map[string]interface{}) MatchTuning {
	t := DefaultMatchTuning()
	if cfg == nil {
		return t
	}
	if v, ok := cfg["match_date_window_days"]; ok {
		if n := toInt(v); n > 0 {
			t.DateWindowDays = n
		}
	}
	if v, ok := cfg["fuzzy_score_margin"]; ok {
		if f, isf := v.(float64); isf && f > 0 {
			t.ScoreMargin = f
		}
	}
	if v, ok := cfg["fuzzy_min_score"]; ok {
		if f, isf := v.(float64); isf && f > 0 {
			t.MinScore = f
		}
	}
	return t
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}
