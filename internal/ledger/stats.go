package ledger

import (
	"bufio"
	"encoding/json"
	"os"
)

// LedgerStats summarizes the JSONL trail.
type LedgerStats struct {
	Total        int
	Coherent     int
	Gap          int
	Unclassified int
	ByDiscipline map[Discipline]int
}

// Stats reads the JSONL directly, bypassing the index. A missing file
// means an empty ledger, not an error; unparsable lines are skipped.
func (l *Ledger) Stats() LedgerStats {
	stats := LedgerStats{ByDiscipline: make(map[Discipline]int)}

	f, err := os.Open(l.path)
	if err != nil {
		return stats
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		stats.Total++
		switch entry.Polarity {
		case PolarityCoherent:
			stats.Coherent++
		case PolarityGap:
			stats.Gap++
		default:
			stats.Unclassified++
		}
		stats.ByDiscipline[entry.Witness.Discipline]++
	}
	return stats
}
