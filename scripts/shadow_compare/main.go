// Command shadow_compare replays read endpoints against two timetable deployments and reports
// status and payload differences, down to the cell for full timetables.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
	// Grid marks payloads shaped [semester][section][day][period] so differences are reported per cell.
	Grid bool `json:"grid"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

type endpoint struct {
	base  string
	token string
}

type comparison struct {
	Target          target
	PrimaryStatus   int
	ShadowStatus    int
	StatusMatch     bool
	BodyMatch       bool
	CellDiffs       []string
	Error           error
	DurationPrimary time.Duration
	DurationShadow  time.Duration
}

const maxReportedCells = 10

func main() {
	var (
		primary     endpoint
		shadow      endpoint
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&primary.base, "primary-base", "http://localhost:8080/api/v1", "Primary API base URL")
	flag.StringVar(&primary.token, "primary-token", os.Getenv("PRIMARY_TOKEN"), "Bearer token for the primary API")
	flag.StringVar(&shadow.base, "shadow-base", "http://localhost:3000", "Shadow API base URL")
	flag.StringVar(&shadow.token, "shadow-token", os.Getenv("SHADOW_TOKEN"), "Bearer token for the shadow API")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results      []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range targets {
		res := compareTarget(client, primary, shadow, t)
		if res.Error != nil || !res.StatusMatch || !res.BodyMatch {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compareTarget(client *http.Client, primary, shadow endpoint, tgt target) comparison {
	res := comparison{Target: tgt}

	primaryStatus, primaryBody, primaryDur, err := fetch(client, primary, tgt)
	if err != nil {
		res.Error = fmt.Errorf("primary request failed: %w", err)
		return res
	}
	shadowStatus, shadowBody, shadowDur, err := fetch(client, shadow, tgt)
	if err != nil {
		res.Error = fmt.Errorf("shadow request failed: %w", err)
		return res
	}

	res.PrimaryStatus, res.ShadowStatus = primaryStatus, shadowStatus
	res.DurationPrimary, res.DurationShadow = primaryDur, shadowDur
	res.StatusMatch = primaryStatus == shadowStatus

	a, errA := decodePayload(primaryBody)
	b, errB := decodePayload(shadowBody)
	if errA != nil || errB != nil {
		res.BodyMatch = strings.TrimSpace(string(primaryBody)) == strings.TrimSpace(string(shadowBody))
		return res
	}
	res.BodyMatch = reflect.DeepEqual(a, b)
	if !res.BodyMatch && tgt.Grid {
		res.CellDiffs = diffGrids(a, b)
	}
	return res
}

func fetch(client *http.Client, ep endpoint, tgt target) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(ep.base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if ep.token != "" {
		req.Header.Set("Authorization", "Bearer "+ep.token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// decodePayload parses JSON and unwraps a {"data": ...} envelope so enveloped and bare
// responses compare equal.
func decodePayload(raw []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]interface{}); ok {
		if data, ok := obj["data"]; ok {
			return data, nil
		}
	}
	return v, nil
}

// diffGrids walks two [semester][section][day][period] payloads and names the differing cells.
func diffGrids(a, b interface{}) []string {
	var diffs []string
	var walk func(x, y interface{}, path []int)
	walk = func(x, y interface{}, path []int) {
		if len(path) == 4 {
			if !reflect.DeepEqual(x, y) {
				diffs = append(diffs, fmt.Sprintf("semester %d section %d day %d period %d: %v != %v",
					path[0], path[1], path[2], path[3], x, y))
			}
			return
		}
		xs, _ := x.([]interface{})
		ys, _ := y.([]interface{})
		if len(xs) != len(ys) {
			diffs = append(diffs, fmt.Sprintf("shape mismatch at %v: %d != %d", path, len(xs), len(ys)))
			return
		}
		for i := range xs {
			walk(xs[i], ys[i], append(append([]int(nil), path...), i))
		}
	}
	walk(a, b, nil)
	return diffs
}

func printReport(results []comparison) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Primary: %d (%s) | Shadow: %d (%s)\n", res.PrimaryStatus, res.DurationPrimary, res.ShadowStatus, res.DurationShadow)
		fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		for i, diff := range res.CellDiffs {
			if i == maxReportedCells {
				fmt.Printf("  ... %d more cells differ\n", len(res.CellDiffs)-maxReportedCells)
				break
			}
			fmt.Printf("  %s\n", diff)
		}
	}
}
