package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Exporter writes break, hydration and activity history to a CSV file so
// external analytics consumers can work on a flat copy of the data.
type Exporter struct {
	breaks    *BreakLogRepository
	hydration *HydrationRepository
	samples   *ActivitySampleRepository
}

func NewExporter(breaks *BreakLogRepository, hydration *HydrationRepository, samples *ActivitySampleRepository) *Exporter {
	return &Exporter{breaks: breaks, hydration: hydration, samples: samples}
}

// Export writes all history since the epoch to path and returns the number of
// records written.
func (e *Exporter) Export(path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"record_type", "timestamp", "break_type", "duration_seconds",
		"completed", "skipped", "snoozed", "amount_ml", "mouse_velocity", "keys_per_min",
		"active_process", "is_fullscreen", "user_response"}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write export header: %w", err)
	}

	count := 0
	epoch := time.Unix(0, 0)

	breaks, err := e.breaks.Since(epoch)
	if err != nil {
		return 0, err
	}
	for _, b := range breaks {
		row := []string{"break", strconv.FormatInt(b.Timestamp, 10), b.BreakType,
			strconv.Itoa(b.DurationSeconds), boolField(b.Completed), boolField(b.Skipped),
			boolField(b.Snoozed), "", "", "", "", "", ""}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write break row: %w", err)
		}
		count++
	}

	hydration, err := e.hydration.Since(epoch)
	if err != nil {
		return 0, err
	}
	for _, h := range hydration {
		row := []string{"hydration", strconv.FormatInt(h.Timestamp, 10), "", "", "", "", "",
			strconv.Itoa(h.AmountML), "", "", "", "", ""}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write hydration row: %w", err)
		}
		count++
	}

	samples, err := e.samples.Since(epoch)
	if err != nil {
		return 0, err
	}
	for _, s := range samples {
		response := ""
		if s.UserResponse != nil {
			response = strconv.Itoa(*s.UserResponse)
		}
		row := []string{"activity", strconv.FormatInt(s.Timestamp, 10), "", "", "", "", "", "",
			strconv.FormatFloat(s.MouseVelocity, 'f', 2, 64), strconv.Itoa(s.KeysPerMinute),
			s.ActiveProcess, boolField(s.IsFullscreen), response}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write activity row: %w", err)
		}
		count++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush export: %w", err)
	}
	return count, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
