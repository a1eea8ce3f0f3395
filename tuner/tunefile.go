package tuner

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Record is one persisted tune: the stable clock and the intensity
// triple that produced it.
type Record struct {
	Clk        float64
	Patience   uint32
	IntensityN uint32
	IntensityD uint32
}

// Tune files are plain text, one record per line:
//
//	<settingID> <clk> <patience> <intensityN> <intensityD>

// LoadTune looks up settingID in the tune file.
func LoadTune(path, settingID string) (Record, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var (
			id  string
			rec Record
		)
		n, _ := fmt.Sscanf(line, "%s %f %d %d %d",
			&id, &rec.Clk, &rec.Patience, &rec.IntensityN, &rec.IntensityD)
		if n >= 2 && id == settingID {
			return rec, true, nil
		}
	}
	return Record{}, false, scanner.Err()
}

// SaveTune writes or replaces the record for settingID.
func SaveTune(path, settingID string, rec Record) error {
	lines := []string{}
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(strings.TrimSpace(line), settingID+" ") {
				continue
			}
			lines = append(lines, line)
		}
		f.Close()
	}
	lines = append(lines, fmt.Sprintf("%s %.3f %d %d %d",
		settingID, rec.Clk, rec.Patience, rec.IntensityN, rec.IntensityD))

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
