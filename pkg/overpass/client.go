// Package overpass fetches business points from the Overpass OSM API and
// normalizes them into the analysis dataset shape.
package overpass

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	api "github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/citykit/dmur-cli/internal/metrics"
	"github.com/citykit/dmur-cli/internal/model"
)

const (
	// DefaultEndpoint is the public Overpass interpreter.
	DefaultEndpoint = "https://overpass-api.de/api/interpreter"
	// DefaultTimeout bounds one Overpass request end to end.
	DefaultTimeout = 3 * time.Minute

	maxAttempts = 3
)

// Config tunes the client. Zero values select defaults.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	// RequestsPerSecond throttles calls to the shared public endpoint.
	// Zero means one request every two seconds.
	RequestsPerSecond float64
}

// Client is a rate-limited, retrying Overpass client.
type Client struct {
	api     api.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a client for the configured endpoint.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 0.5
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:     api.NewWithSettings(cfg.Endpoint, 2, httpClient),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		timeout: cfg.Timeout,
	}
}

// FetchBusinesses queries all commercial points of interest for the
// requested area and returns them as a dataset, ordered by OSM element ID.
func (c *Client) FetchBusinesses(ctx context.Context, spec QuerySpec) (*model.BusinessDataset, error) {
	query, err := spec.Build()
	if err != nil {
		return nil, err
	}

	result, err := c.query(ctx, query)
	if err != nil {
		return nil, err
	}

	points := extractPoints(result)
	if len(points) == 0 {
		return nil, model.DataErrorf("overpass", "no businesses found for %s", spec.Place())
	}
	zap.L().Info("businesses fetched",
		zap.String("place", spec.Place()),
		zap.Int("count", len(points)),
	)

	return &model.BusinessDataset{
		City:       spec.City,
		State:      spec.State,
		Country:    spec.Country,
		BBox:       spec.BBox,
		Timestamp:  time.Now().UTC(),
		Total:      len(points),
		Businesses: points,
	}, nil
}

func (c *Client) query(ctx context.Context, query string) (api.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return api.Result{}, eris.Wrap(err, "overpass: rate limit wait")
		}

		result, err := c.api.Query(query)
		if err == nil {
			metrics.OverpassRequests.WithLabelValues("ok").Inc()
			return result, nil
		}
		metrics.OverpassRequests.WithLabelValues("error").Inc()
		lastErr = err
		zap.L().Warn("overpass query failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < maxAttempts {
			backoff := time.Duration(attempt*attempt) * 5 * time.Second
			select {
			case <-ctx.Done():
				return api.Result{}, eris.Wrap(ctx.Err(), "overpass: context cancelled")
			case <-time.After(backoff):
			}
		}
	}
	return api.Result{}, eris.Wrapf(lastErr, "overpass: query failed after %d attempts", maxAttempts)
}

// extractPoints converts nodes and way centroids to business points,
// dropping unclassifiable and lifecycle-excluded elements. Output is
// sorted by ID so repeated fetches produce identical datasets.
func extractPoints(result api.Result) []model.BusinessPoint {
	var points []model.BusinessPoint

	for _, node := range result.Nodes {
		if p, ok := toPoint(node.ID, node.Lat, node.Lon, node.Tags); ok {
			points = append(points, p)
		}
	}
	for _, way := range result.Ways {
		lat, lon, ok := wayCentroid(way)
		if !ok {
			continue
		}
		if p, ok := toPoint(way.ID, lat, lon, way.Tags); ok {
			points = append(points, p)
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })
	return points
}

func toPoint(id int64, lat, lon float64, tags map[string]string) (model.BusinessPoint, bool) {
	cls, ok := Classify(tags)
	if !ok {
		return model.BusinessPoint{}, false
	}
	return model.BusinessPoint{
		ID:       id,
		Lat:      lat,
		Lon:      lon,
		Name:     tags["name"],
		Category: cls.Category,
		Subtype:  cls.Subtype,
		Status:   cls.Status,
	}, true
}

func wayCentroid(way *api.Way) (float64, float64, bool) {
	if len(way.Nodes) > 0 {
		var lat, lon float64
		n := 0
		for _, node := range way.Nodes {
			if node == nil {
				continue
			}
			lat += node.Lat
			lon += node.Lon
			n++
		}
		if n > 0 {
			return lat / float64(n), lon / float64(n), true
		}
	}
	if way.Bounds != nil {
		return (way.Bounds.Min.Lat + way.Bounds.Max.Lat) / 2,
			(way.Bounds.Min.Lon + way.Bounds.Max.Lon) / 2, true
	}
	return 0, 0, false
}
