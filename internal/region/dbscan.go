package region

import (
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/spatial"
)

const (
	labelUnvisited = -2
	labelNoise     = model.NoiseLabel
)

// ClusterDBSCAN runs density-reachability clustering over the indexed
// points with neighborhood radius eps and minimum cluster size minPts.
// Points are visited in the index's sorted order and neighbor expansion is
// index-ordered, so the labeling is fully deterministic: identical point
// sets produce identical clusters regardless of input order.
func ClusterDBSCAN(idx *spatial.Index, eps float64, minPts int) []model.Cluster {
	n := idx.Len()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = labelUnvisited
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != labelUnvisited {
			continue
		}
		neighbors := idx.Neighbors(i, eps)
		if len(neighbors)+1 < minPts {
			labels[i] = labelNoise
			continue
		}

		label := next
		next++
		labels[i] = label

		// Seed expansion; the queue only ever grows at the tail so the
		// traversal order is reproducible.
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if labels[j] == labelNoise {
				labels[j] = label // border point adopted by the cluster
				continue
			}
			if labels[j] != labelUnvisited {
				continue
			}
			labels[j] = label
			jn := idx.Neighbors(j, eps)
			if len(jn)+1 >= minPts {
				queue = append(queue, jn...)
			}
		}
	}

	clusters := make([]model.Cluster, next)
	for label := range clusters {
		clusters[label].Label = label
	}
	for i, label := range labels {
		if label < 0 {
			continue
		}
		clusters[label].Points = append(clusters[label].Points, idx.Point(i))
	}
	for label := range clusters {
		clusters[label].Range = pointBounds(clusters[label].Points)
	}
	return clusters
}

func pointBounds(pts []model.BusinessPoint) model.CoordinateRange {
	if len(pts) == 0 {
		return model.CoordinateRange{}
	}
	r := model.CoordinateRange{
		MinLat: pts[0].Lat, MaxLat: pts[0].Lat,
		MinLon: pts[0].Lon, MaxLon: pts[0].Lon,
	}
	for _, p := range pts[1:] {
		if p.Lat < r.MinLat {
			r.MinLat = p.Lat
		}
		if p.Lat > r.MaxLat {
			r.MaxLat = p.Lat
		}
		if p.Lon < r.MinLon {
			r.MinLon = p.Lon
		}
		if p.Lon > r.MaxLon {
			r.MaxLon = p.Lon
		}
	}
	return r
}
