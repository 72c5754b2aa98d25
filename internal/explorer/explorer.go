// Package explorer discovers multi-hop sea routes between two ports by
// expanding voyage schedules outward from the start port.
package explorer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"freightgraph/internal/errs"
	"freightgraph/internal/metrics"
	"freightgraph/internal/model"
	"freightgraph/internal/providers"
)

const MaxHopsLimit = 10

// Rejection reasons.
const (
	RejectIncomplete     = "incomplete"
	RejectOriginMismatch = "origin_mismatch"
	RejectDuplicate      = "duplicate"
	RejectSelfLoop       = "self_loop"
	RejectPlaceholder    = "placeholder"
	RejectCycle          = "cycle"
	RejectInfeasible     = "infeasible"
)

// Why the exploration loop ended.
const (
	StopExhausted  = "exhausted"
	StopTimeBudget = "time_budget"
	StopPortBudget = "port_budget"
	StopRouteCap   = "route_cap"
	StopCancelled  = "cancelled"
)

var (
	locodeRe     = regexp.MustCompile(`^[A-Z]{2}[A-Z2-9]{3}$`)
	placeholders = map[string]bool{"XXXXX": true, "UNKNOWN": true, "N/A": true, "TBA": true, "TBD": true, "ZZZZZ": true}
)

// IsPortCode reports whether code looks like a real UN/LOCODE.
func IsPortCode(code string) bool {
	return !placeholders[code] && locodeRe.MatchString(code)
}

type Options struct {
	MaxHops           int
	WallClock         time.Duration
	MaxPorts          int
	MaxCompleteRoutes int
	Window            time.Duration
	MaxTreeNodes      int
}

func DefaultOptions() Options {
	return Options{
		MaxHops:           5,
		WallClock:         180 * time.Second,
		MaxPorts:          50,
		MaxCompleteRoutes: 100,
		Window:            30 * 24 * time.Hour,
		MaxTreeNodes:      5000,
	}
}

type Request struct {
	StartPort string    `json:"startPort"`
	EndPort   string    `json:"endPort,omitempty"`
	StartDate time.Time `json:"startDate"`
	// MaxHops overrides Options.MaxHops when set.
	MaxHops int `json:"maxHops,omitempty"`
}

type Progress struct {
	Port           string `json:"port"`
	Depth          int    `json:"depth"`
	Processed      int    `json:"processed"`
	Frontier       int    `json:"frontier"`
	Accepted       int    `json:"accepted"`
	CompleteRoutes int    `json:"completeRoutes"`
}

type CompleteRoute struct {
	Path      []string       `json:"path"`
	Voyages   []model.Voyage `json:"voyages"`
	TotalHops int            `json:"totalHops"`
	Departure time.Time      `json:"departureTime"`
	Arrival   time.Time      `json:"arrivalTime"`
}

type Stats struct {
	PortsProcessed  int            `json:"portsProcessed"`
	VoyagesFetched  int            `json:"voyagesFetched"`
	VoyagesAccepted int            `json:"voyagesAccepted"`
	FetchErrors     int            `json:"fetchErrors"`
	Rejected        map[string]int `json:"rejected"`
	StoppedBy       string         `json:"stoppedBy"`
	ElapsedMs       int64          `json:"elapsedMs"`
	TreeNodes       int            `json:"treeNodes"`
	TreeTruncated   bool           `json:"treeTruncated"`
}

type Result struct {
	// Graph maps a port to the accepted voyages departing it.
	Graph          map[string][]model.Voyage `json:"graph"`
	RouteTree      *TreeNode                 `json:"routeTree"`
	CompleteRoutes []CompleteRoute           `json:"completeRoutes"`
	Stats          Stats                     `json:"stats"`
}

type Explorer struct {
	sched providers.PortSchedules
	log   *zap.Logger
	opts  Options
	now   func() time.Time
}

func New(sched providers.PortSchedules, log *zap.Logger, opts Options) *Explorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Explorer{sched: sched, log: log, opts: opts, now: time.Now}
}

func (e *Explorer) validate(req *Request) (int, error) {
	var ve errs.ValidationErrors
	req.StartPort = strings.ToUpper(strings.TrimSpace(req.StartPort))
	req.EndPort = strings.ToUpper(strings.TrimSpace(req.EndPort))
	if !IsPortCode(req.StartPort) {
		ve = append(ve, &errs.ValidationError{Field: "startPort", Message: "must be a UN/LOCODE such as INCOK"})
	}
	if req.EndPort != "" && !IsPortCode(req.EndPort) {
		ve = append(ve, &errs.ValidationError{Field: "endPort", Message: "must be a UN/LOCODE such as NLRTM"})
	}
	if req.StartDate.IsZero() {
		ve = append(ve, &errs.ValidationError{Field: "startDate", Message: "required"})
	}
	hops := e.opts.MaxHops
	if req.MaxHops != 0 {
		hops = req.MaxHops
	}
	if hops < 1 || hops > MaxHopsLimit {
		ve = append(ve, &errs.ValidationError{Field: "maxHops", Message: "must be between 1 and 10"})
	}
	if len(ve) > 0 {
		return 0, ve
	}
	return hops, nil
}

// Explore runs the bounded expansion and returns whatever was found before a
// budget ran out. Only invalid input is an error; provider failures are
// logged and treated as ports without departures.
func (e *Explorer) Explore(ctx context.Context, req Request, onProgress func(Progress)) (*Result, error) {
	maxHops, err := e.validate(&req)
	if err != nil {
		return nil, err
	}
	start := e.now()
	budgetCtx, cancel := context.WithTimeout(ctx, e.opts.WallClock)
	defer cancel()

	res := &Result{
		Graph:          map[string][]model.Voyage{},
		CompleteRoutes: []CompleteRoute{},
		Stats:          Stats{Rejected: map[string]int{}},
	}
	log := e.log.With(zap.String("start", req.StartPort), zap.String("end", req.EndPort))
	accepted := map[string]bool{}
	memo := map[string]bool{}
	var seq uint64

	fr := &frontier{}
	fr.push(&workItem{port: req.StartPort, arrival: req.StartDate, path: []string{req.StartPort}})

	stoppedBy := StopExhausted
loop:
	for fr.Len() > 0 {
		switch {
		case ctx.Err() != nil:
			stoppedBy = StopCancelled
			break loop
		case budgetCtx.Err() != nil:
			stoppedBy = StopTimeBudget
			break loop
		case res.Stats.PortsProcessed >= e.opts.MaxPorts:
			stoppedBy = StopPortBudget
			break loop
		}
		it := fr.pop()
		key := memoKey(it.port, it.arrival)
		if memo[key] || it.depth >= maxHops {
			continue
		}
		memo[key] = true
		res.Stats.PortsProcessed++

		voyages, err := e.sched.Departures(budgetCtx, it.port, it.arrival, it.arrival.Add(e.opts.Window))
		if err != nil {
			res.Stats.FetchErrors++
			level := log.Warn
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				level = log.Debug
			}
			level("departures fetch failed", zap.String("port", it.port), zap.Error(err))
			voyages = nil
		}
		res.Stats.VoyagesFetched += len(voyages)

		for _, v := range voyages {
			if reason := e.reject(v, it, req.EndPort, accepted); reason != "" {
				res.Stats.Rejected[reason]++
				metrics.VoyageRejections.WithLabelValues(reason).Inc()
				continue
			}
			accepted[v.DedupKey()] = true
			res.Graph[it.port] = append(res.Graph[it.port], v)
			res.Stats.VoyagesAccepted++

			seq++
			next := it.child(v, seq)
			if v.ToPort == req.EndPort {
				res.CompleteRoutes = append(res.CompleteRoutes, CompleteRoute{
					Path:      next.path,
					Voyages:   next.voyages,
					TotalHops: next.depth,
					Departure: next.voyages[0].DepartureTime,
					Arrival:   v.ArrivalTime,
				})
				if len(res.CompleteRoutes) >= e.opts.MaxCompleteRoutes {
					stoppedBy = StopRouteCap
					break loop
				}
				continue
			}
			if next.depth < maxHops && !memo[memoKey(next.port, next.arrival)] {
				fr.push(next)
			}
		}
		if onProgress != nil {
			onProgress(Progress{
				Port:           it.port,
				Depth:          it.depth,
				Processed:      res.Stats.PortsProcessed,
				Frontier:       fr.Len(),
				Accepted:       res.Stats.VoyagesAccepted,
				CompleteRoutes: len(res.CompleteRoutes),
			})
		}
	}

	res.RouteTree, res.Stats.TreeNodes, res.Stats.TreeTruncated = buildTree(res.Graph, req.StartPort, req.EndPort, maxHops, e.opts.MaxTreeNodes)
	res.Stats.StoppedBy = stoppedBy
	res.Stats.ElapsedMs = e.now().Sub(start).Milliseconds()
	metrics.Explorations.WithLabelValues(stoppedBy).Inc()
	log.Info("exploration finished",
		zap.String("stoppedBy", stoppedBy),
		zap.Int("portsProcessed", res.Stats.PortsProcessed),
		zap.Int("voyagesAccepted", res.Stats.VoyagesAccepted),
		zap.Int("completeRoutes", len(res.CompleteRoutes)),
		zap.Int64("elapsedMs", res.Stats.ElapsedMs),
	)
	return res, nil
}

// reject returns the reason v cannot extend the path of it, or "".
func (e *Explorer) reject(v model.Voyage, it *workItem, target string, accepted map[string]bool) string {
	switch {
	case !v.Complete():
		return RejectIncomplete
	case v.FromPort != it.port:
		return RejectOriginMismatch
	case accepted[v.DedupKey()]:
		return RejectDuplicate
	case v.ToPort == v.FromPort:
		return RejectSelfLoop
	case !IsPortCode(v.ToPort):
		return RejectPlaceholder
	case v.ToPort != target && contains(it.path, v.ToPort):
		return RejectCycle
	case v.DepartureTime.Before(it.arrival):
		return RejectInfeasible
	}
	return ""
}

func memoKey(port string, at time.Time) string {
	return port + "|" + at.UTC().Format(time.DateOnly)
}

func contains(path []string, port string) bool {
	for _, p := range path {
		if p == port {
			return true
		}
	}
	return false
}
