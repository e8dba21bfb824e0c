package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strataviz/strataflow/pkg/buildinfo"
	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/errors"
	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/pipeline"
	"github.com/strataviz/strataflow/pkg/tree"
)

// errorBody is the structured error payload every failing endpoint
// returns.
type errorBody struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code errors.Code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, httpStatus(code), body)
}

// writeEngineError maps an engine error to its code and status.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, errors.CodeOf(err), err.Error())
}

// httpStatus maps an error code to an HTTP status.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeNotFound, errors.ErrCodeNodeNotFound,
		errors.ErrCodeSessionNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInternal, errors.ErrCodeTimeout:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, errors.ErrCodeInvalidInput, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// session resolves the sessionID route parameter, writing the error
// response itself on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "sessionID")
	if err := errors.ValidateSessionID(id); err != nil {
		writeError(w, errors.ErrCodeInvalidInput, err.Error())
		return nil, false
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, errors.ErrCodeSessionNotFound, "session not found: "+id)
		return nil, false
	}
	return sess, true
}

// ---------------------------------------------------------------------------
// Health and dataset endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"records": s.data.Len(),
	})
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.FilterOptions())
}

type histogramRequest struct {
	Filters   dataset.Filters `json:"filters"`
	Metric    string          `json:"metric"`
	Bins      int             `json:"bins"`
	SessionID string          `json:"session_id"`
	NodeID    string          `json:"node_id"`
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	var req histogramRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := errors.ValidateMetricName(req.Metric); err != nil {
		writeError(w, errors.ErrCodeInvalidInput, err.Error())
		return
	}

	view := s.data.Filter(req.Filters)

	// Optional node scoping: classify through the session's tree and keep
	// only items that pass through the named node.
	if req.NodeID != "" {
		if req.SessionID == "" {
			writeError(w, errors.ErrCodeInvalidInput, "node_id requires session_id")
			return
		}
		sess, ok := s.sessions.Get(req.SessionID)
		if !ok {
			writeError(w, errors.ErrCodeSessionNotFound, "session not found: "+req.SessionID)
			return
		}
		var scoped *dataset.Dataset
		err := sess.With(func(tr *tree.Tree) error {
			res, err := classify.Run(r.Context(), tr, view.Items(), classify.Options{SkipMissing: true})
			if err != nil {
				return err
			}
			members, err := nodeMembers(tr, res, req.NodeID)
			if err != nil {
				return err
			}
			scoped = subset(view, members)
			return nil
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		view = scoped
	}

	h, err := view.Histogram(req.Metric, req.Bins)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.ErrCodeInvalidInput, "item id must be an integer")
		return
	}
	record, err := s.data.Record(id)
	if err != nil {
		writeError(w, errors.ErrCodeNotFound, "item not found: "+strconv.Itoa(id))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// setCountsRequest describes an ad-hoc agreement pattern to evaluate over
// the filtered population: one threshold per metric, enumerating every
// high/low combination as a set.
type setCountsRequest struct {
	Filters    dataset.Filters `json:"filters"`
	Metrics    []string        `json:"metrics"`
	Thresholds []float64       `json:"thresholds"`
}

// handleSetCounts routes every filtered item through a caller-supplied
// pattern rule and returns per-set member counts. No session tree is
// involved; this backs linear set diagrams for exploring a pattern before
// committing it as a stage.
func (s *Server) handleSetCounts(w http.ResponseWriter, r *http.Request) {
	var req setCountsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := tree.NewPatternRule(req.Metrics, req.Thresholds)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	view := s.data.Filter(req.Filters)
	if view.Len() == 0 {
		writeError(w, errors.ErrCodeInvalidInput, "no items match the given filters")
		return
	}

	counts := make(map[string]int, rule.BranchCount())
	for i := 0; i < rule.BranchCount(); i++ {
		counts[rule.BranchSuffix(i)] = 0
	}
	total := 0
	for _, rec := range view.Records() {
		branch, err := tree.Route(rule, rec.Values)
		if err != nil {
			// Items missing a metric are skipped, as in classification.
			continue
		}
		counts[rule.BranchSuffix(branch)]++
		total++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"set_counts":  counts,
		"total_items": total,
	})
}

// ---------------------------------------------------------------------------
// Session endpoints

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var doc graphio.Tree
	var metrics []string
	var nodeCount, maxStage int
	_ = sess.With(func(tr *tree.Tree) error {
		doc = graphio.FromTree(tr)
		metrics = tr.Metrics()
		nodeCount = tr.NodeCount()
		maxStage = tr.MaxStage()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"tree":       doc,
		"metrics":    metrics,
		"node_count": nodeCount,
		"max_stage":  maxStage,
	})
}

type sankeyRequest struct {
	Filters   dataset.Filters `json:"filters"`
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	NodeWidth float64         `json:"node_width"`
	Refresh   bool            `json:"refresh"`
}

func (s *Server) handleSankey(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req sankeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var result *pipeline.Result
	err := sess.With(func(tr *tree.Tree) error {
		var err error
		result, err = s.runner.Execute(r.Context(), tr, s.data, pipeline.Options{
			TreeID:      sess.ID,
			Filters:     req.Filters,
			SkipMissing: true,
			Width:       req.Width,
			Height:      req.Height,
			NodeWidth:   req.NodeWidth,
			Refresh:     req.Refresh,
		})
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sankey":    result.Sankey,
		"layout":    result.Layout,
		"tree_hash": result.TreeHash,
		"cache": map[string]bool{
			"sankey_hit": result.CacheInfo.SankeyHit,
			"layout_hit": result.CacheInfo.LayoutHit,
		},
	})
}

type stageTypeInfo struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"display_name"`
	Kind              string    `json:"kind"`
	Metrics           []string  `json:"metrics,omitempty"`
	DefaultThresholds []float64 `json:"default_thresholds,omitempty"`
}

func (s *Server) handleStageTypes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	nodeID := r.URL.Query().Get("node_id")
	if nodeID == "" {
		nodeID = tree.RootID
	}

	var infos []stageTypeInfo
	err := sess.With(func(tr *tree.Tree) error {
		available, err := tr.AvailableStageTypes(nodeID)
		if err != nil {
			return err
		}
		infos = make([]stageTypeInfo, len(available))
		for i, st := range available {
			infos[i] = stageTypeInfo{
				ID:                st.ID,
				DisplayName:       st.DisplayName,
				Kind:              st.Kind.String(),
				Metrics:           st.Metrics,
				DefaultThresholds: st.Thresholds,
			}
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stage_types": infos})
}

type addStageRequest struct {
	NodeID     string             `json:"node_id"`
	StageType  string             `json:"stage_type"`
	Thresholds []float64          `json:"thresholds"`
	Expression *expressionRequest `json:"expression"`
}

type expressionRequest struct {
	Branches      []graphio.ExpressionBranch `json:"branches"`
	DefaultSuffix string                     `json:"default_suffix"`
}

func (s *Server) handleAddStage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req addStageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := errors.ValidateNodeID(req.NodeID); err != nil {
		writeError(w, errors.ErrCodeInvalidInput, err.Error())
		return
	}
	if err := errors.ValidateStageTypeID(req.StageType); err != nil {
		writeError(w, errors.ErrCodeInvalidInput, err.Error())
		return
	}

	var children []string
	var nodeCount int
	err := sess.With(func(tr *tree.Tree) error {
		var err error
		if req.Expression != nil {
			branches := make([]tree.ExpressionBranch, len(req.Expression.Branches))
			for i, b := range req.Expression.Branches {
				branches[i] = tree.ExpressionBranch{
					Condition:   b.Condition,
					Suffix:      b.Suffix,
					Description: b.Description,
				}
			}
			rule, ruleErr := tree.NewExpressionRule(branches, req.Expression.DefaultSuffix)
			if ruleErr != nil {
				return ruleErr
			}
			err = tr.AddExpressionStage(req.NodeID, req.StageType, rule)
		} else {
			err = tr.AddStage(req.NodeID, req.StageType, req.Thresholds)
		}
		if err != nil {
			return err
		}
		if n, ok := tr.Node(req.NodeID); ok {
			children = n.ChildIDs
		}
		nodeCount = tr.NodeCount()
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"children":   children,
		"node_count": nodeCount,
	})
}

func (s *Server) handleRemoveStage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if err := errors.ValidateNodeID(nodeID); err != nil {
		writeError(w, errors.ErrCodeInvalidInput, err.Error())
		return
	}

	var removed int
	err := sess.With(func(tr *tree.Tree) error {
		var err error
		removed, err = tr.RemoveStage(nodeID)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var removed int
	_ = sess.With(func(tr *tree.Tree) error {
		removed = tr.Reset()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// ---------------------------------------------------------------------------
// Comparison endpoint

type compareRequest struct {
	LeftSessionID  string          `json:"left_session_id"`
	RightSessionID string          `json:"right_session_id"`
	Filters        dataset.Filters `json:"filters"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	left, ok := s.sessions.Get(req.LeftSessionID)
	if !ok {
		writeError(w, errors.ErrCodeSessionNotFound, "session not found: "+req.LeftSessionID)
		return
	}
	right, ok := s.sessions.Get(req.RightSessionID)
	if !ok {
		writeError(w, errors.ErrCodeSessionNotFound, "session not found: "+req.RightSessionID)
		return
	}

	opts := pipeline.Options{Filters: req.Filters, SkipMissing: true}
	var comparison graphio.Comparison

	// Both sessions lock for the duration. Sessions are locked in id
	// order so two concurrent compares of the same pair cannot deadlock.
	first, second := left, right
	if second.ID < first.ID {
		first, second = second, first
	}
	err := first.With(func(*tree.Tree) error {
		run := func() error {
			var err error
			comparison, err = s.compareLocked(r, left, right, opts)
			return err
		}
		if first == second {
			return run()
		}
		return second.With(func(*tree.Tree) error { return run() })
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

// compareLocked classifies both trees and matches flows. Callers must hold
// both session locks.
func (s *Server) compareLocked(r *http.Request, left, right *Session, opts pipeline.Options) (graphio.Comparison, error) {
	ctx := r.Context()

	leftOpts := opts
	leftOpts.TreeID = left.ID
	leftRes, err := s.runner.Classify(ctx, left.tree, s.data, leftOpts)
	if err != nil {
		return graphio.Comparison{}, err
	}

	rightOpts := opts
	rightOpts.TreeID = right.ID
	rightRes, err := s.runner.Classify(ctx, right.tree, s.data, rightOpts)
	if err != nil {
		return graphio.Comparison{}, err
	}

	return s.runner.Compare(ctx, left.tree, right.tree, leftRes, rightRes, opts)
}

// ---------------------------------------------------------------------------
// Helpers

// nodeMembers collects the ids of items whose leaf lies at or below the
// given node.
func nodeMembers(tr *tree.Tree, res *classify.Result, nodeID string) ([]int, error) {
	if _, ok := tr.Node(nodeID); !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "node not found: %s", nodeID)
	}

	var members []int
	for leafID, items := range res.LeafMembers {
		leaf, ok := tr.Node(leafID)
		if !ok {
			continue
		}
		if leafID == nodeID || hasAncestor(leaf, nodeID) {
			members = append(members, items...)
		}
	}
	sort.Ints(members)
	return members, nil
}

func hasAncestor(n *tree.Node, id string) bool {
	for _, step := range n.ParentPath {
		if step.ParentID == id {
			return true
		}
	}
	return false
}

// subset restricts a dataset view to the given item ids.
func subset(d *dataset.Dataset, ids []int) *dataset.Dataset {
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var records []dataset.Record
	for _, rec := range d.Records() {
		if keep[rec.ID] {
			records = append(records, rec)
		}
	}
	return dataset.New(records)
}
