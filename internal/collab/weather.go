// Package collab talks to the external collaborators shown next to the
// report board: current weather, scheduled power outages and reverse
// geocoding. Failures degrade to an unavailable state and never reach the
// report core.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnavailable is returned when a collaborator has no usable data.
var ErrUnavailable = errors.New("no disponible")

// Unavailable is the text shown in place of a collaborator that failed.
const Unavailable = "No disponible"

const (
	DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

	// Sarmiento, San Juan.
	DefaultLatitude  = -31.9742
	DefaultLongitude = -68.4231
	DefaultTimezone  = "America/Argentina/San_Juan"

	httpTimeout = 10 * time.Second
)

// weatherCodes maps WMO weather codes to their Spanish description.
var weatherCodes = map[int]string{
	0:  "Despejado",
	1:  "Mayormente despejado",
	2:  "Parcialmente nublado",
	3:  "Nublado",
	45: "Niebla",
	48: "Niebla con escarcha",
	51: "Llovizna ligera",
	53: "Llovizna moderada",
	55: "Llovizna densa",
	61: "Lluvia ligera",
	63: "Lluvia moderada",
	65: "Lluvia fuerte",
	71: "Nieve ligera",
	73: "Nieve moderada",
	75: "Nieve fuerte",
	80: "Chubascos ligeros",
	81: "Chubascos moderados",
	82: "Chubascos fuertes",
	95: "Tormenta",
	96: "Tormenta con granizo",
	99: "Tormenta fuerte con granizo",
}

// DescribeWeatherCode returns the Spanish description of a WMO code.
// Unknown codes read as clear sky.
func DescribeWeatherCode(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return weatherCodes[0]
}

// Weather is the current conditions at the configured point.
type Weather struct {
	TemperatureC float64   `json:"temperature_c"`
	Code         int       `json:"code"`
	Description  string    `json:"description"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Rounded returns the temperature rounded to whole degrees.
func (w Weather) Rounded() int {
	return int(math.Round(w.TemperatureC))
}

func (w Weather) String() string {
	return fmt.Sprintf("%d°C, %s", w.Rounded(), w.Description)
}

// WeatherProvider returns current conditions.
type WeatherProvider interface {
	Current(ctx context.Context) (Weather, error)
}

// WeatherClient queries the open-meteo forecast API.
type WeatherClient struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Timezone  string
	HTTP      *http.Client
	now       func() time.Time
}

// NewWeatherClient returns a client for Sarmiento with the default endpoint.
func NewWeatherClient() *WeatherClient {
	return &WeatherClient{
		BaseURL:   DefaultWeatherURL,
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Timezone:  DefaultTimezone,
		HTTP:      &http.Client{Timeout: httpTimeout},
		now:       time.Now,
	}
}

type openMeteoResponse struct {
	Current *struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Current fetches the current temperature and weather code.
func (c *WeatherClient) Current(ctx context.Context) (Weather, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m,weather_code")
	q.Set("timezone", c.Timezone)

	var body openMeteoResponse
	if err := getJSON(ctx, c.client(), c.BaseURL+"?"+q.Encode(), nil, &body); err != nil {
		return Weather{}, fmt.Errorf("fetching weather: %w", err)
	}
	if body.Current == nil {
		return Weather{}, fmt.Errorf("fetching weather: %w: response has no current block", ErrUnavailable)
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return Weather{
		TemperatureC: body.Current.Temperature,
		Code:         body.Current.WeatherCode,
		Description:  DescribeWeatherCode(body.Current.WeatherCode),
		FetchedAt:    now(),
	}, nil
}

func (c *WeatherClient) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: httpTimeout}
}

// getJSON issues a GET and decodes a 200 response into dest.
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
