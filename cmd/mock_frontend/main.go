package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"safety-monitor/distress"
	"safety-monitor/models"
)

type analysisResponse struct {
	Result      distress.DetectionResult `json:"result"`
	Explanation string                   `json:"explanation"`
	Valid       bool                     `json:"valid"`
	Alert       *models.SafetyAlert      `json:"alert,omitempty"`
}

// Posts the preset scenarios to a running server, the way the app's test
// panel does, and prints each verdict.
func main() {
	endpoint := flag.String("url", "http://localhost:5000/api/analyze", "Analyze endpoint")
	scenarios := flag.String("scenarios", strings.Join(distress.ScenarioNames(), ","), "Comma-separated presets to send")
	spike := flag.Bool("spike", false, "Attach a spike accelerometer reading")
	keyword := flag.Bool("keyword", false, "Attach the distress keywords \"help\" and \"stop\"")
	user := flag.String("user", "", "Optional user id (enables settings, contacts and notifications)")
	latFlag := flag.Float64("lat", math.NaN(), "Optional latitude")
	lonFlag := flag.Float64("lon", math.NaN(), "Optional longitude")
	delay := flag.Duration("delay", 500*time.Millisecond, "Delay between requests")
	flag.Parse()

	names := strings.Split(*scenarios, ",")
	fmt.Printf("Sending %d scenario(s) to %s\n\n", len(names), *endpoint)

	for idx, name := range names {
		name = strings.TrimSpace(name)
		req, err := buildRequest(name, *spike, *keyword, *user, latFlag, lonFlag)
		if err != nil {
			log.Printf("skipping %q: %v\n", name, err)
			continue
		}
		if err := send(*endpoint, name, req); err != nil {
			log.Printf("request failed for %s: %v\n", name, err)
		}

		if idx < len(names)-1 && *delay > 0 {
			time.Sleep(*delay)
		}
	}
}

func buildRequest(name string, spike, keyword bool, user string, latFlag, lonFlag *float64) (models.AnalysisRequest, error) {
	input, err := distress.BuildScenarioInput(name, spike, keyword, nil)
	if err != nil {
		return models.AnalysisRequest{}, err
	}

	req := models.AnalysisRequest{
		UserID:         user,
		Classification: &input.Classification,
		Accelerometer:  input.Accelerometer,
		Keywords:       input.Keywords,
	}
	if !math.IsNaN(*latFlag) && !math.IsNaN(*lonFlag) {
		req.Latitude = latFlag
		req.Longitude = lonFlag
	}
	return req, nil
}

func send(endpoint, name string, req models.AnalysisRequest) error {
	fmt.Printf("→ %s (scream=%.2f noise=%.2f)\n", name, req.Classification.Scream, req.Classification.Noise)

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post analyze request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var result analysisResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode analyze response: %w", err)
	}

	r := result.Result
	fmt.Printf("   level=%s detection=%v valid=%v\n", r.DistressLevel, r.Detection, result.Valid)
	fmt.Printf("   action: %s\n", r.RecommendedAction)
	fmt.Printf("   user:   %s\n", r.MessageForUser)
	if r.MessageForEmergencyContacts != "" {
		fmt.Printf("   contacts: %s\n", r.MessageForEmergencyContacts)
	}
	if result.Alert != nil {
		fmt.Printf("   alert %s type=%s status=%s notified=%d\n",
			result.Alert.ID, result.Alert.AlertType, result.Alert.Status, len(result.Alert.ContactsNotified))
	}
	fmt.Println()

	return nil
}
