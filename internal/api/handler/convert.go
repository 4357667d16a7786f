package handler

import (
	"github.com/heatwise/heatwise/internal/api/models"
	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/greenspace"
	"github.com/heatwise/heatwise/internal/lookup"
	"github.com/heatwise/heatwise/internal/mitigation"
	"github.com/heatwise/heatwise/internal/session"
	"github.com/heatwise/heatwise/pkg/polyline"
)

func toSessionModel(s session.Snapshot) models.Session {
	return models.Session{
		ID:           s.ID,
		CreatedAt:    models.Timestamp(s.CreatedAt),
		LastActiveAt: models.Timestamp(s.LastActiveAt),
		Status:       string(s.Status),
		Assessment:   toAssessmentModel(s.Current),
		Message:      s.Message,
		Plan:         toPlanModel(s.Plan, s.Summary),
	}
}

func toAssessmentModel(out *lookup.Outcome) *models.Assessment {
	if out == nil {
		return nil
	}

	loc := out.Location
	reading := out.Reading
	return &models.Assessment{
		Query: out.Query,
		Location: models.Location{
			Point:       models.Point{Lat: loc.Lat, Lon: loc.Lon},
			Name:        loc.Name,
			Admin1:      loc.Admin1,
			Country:     loc.Country,
			DisplayName: loc.DisplayName(),
		},
		Weather: models.Weather{
			TemperatureC:        reading.TemperatureC,
			RelativeHumidityPct: reading.RelativeHumidityPct,
			HumidityAssumed:     reading.RelativeHumidityPct == nil,
			ObservedAt:          models.Timestamp(reading.ObservedAt),
		},
		Greenspace: models.Greenspace{
			Pct:      out.Greenspace.Pct,
			Fallback: out.Greenspace.Fallback,
			Included: out.Greenspace.Included,
			Skipped:  out.Greenspace.Skipped,
		},
		HeatIndexC: out.Assessment.HeatIndexC,
		Score:      out.Assessment.Score,
		Label:      string(out.Assessment.Label),
		FinishedAt: models.Timestamp(out.FinishedAt),
	}
}

func toMapModel(out *lookup.Outcome) models.MapLayer {
	return models.MapLayer{
		Center:         models.Point{Lat: out.Location.Lat, Lon: out.Location.Lon},
		RadiusMeters:   greenspace.RadiusMeters,
		CirclePolyline: polyline.EncodeRing(out.Greenspace.Circle),
		Features:       out.Greenspace.Features,
	}
}

func toActionModel(a mitigation.Action) models.Action {
	return models.Action{
		ID:         a.ID,
		Label:      a.Label,
		HeatDrop:   a.HeatDrop,
		CO2SavedKg: a.CO2SavedKg,
		SDGTags:    a.SDGTags,
	}
}

func toActionModels(actions []mitigation.Action) []models.Action {
	out := make([]models.Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, toActionModel(a))
	}
	return out
}

func toPlanModel(items []mitigation.Action, sum mitigation.Summary) models.PlanSummary {
	return models.PlanSummary{
		Items:           toActionModels(items),
		ItemCount:       sum.ItemCount,
		TotalHeatDrop:   sum.TotalHeatDrop,
		TotalCO2Kg:      sum.TotalCO2Kg,
		MilesEquivalent: sum.MilesEquivalent,
		SDGTags:         sum.SDGTags,
	}
}

func toFlagModels(flags []featureflags.Flag) []models.FeatureFlag {
	out := make([]models.FeatureFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, models.FeatureFlag{
			Key:       f.Key,
			Value:     f.Value,
			UpdatedAt: models.Timestamp(f.UpdatedAt),
		})
	}
	return out
}
