package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/creatorshive/arrisd/internal/arris"
	"github.com/creatorshive/arrisd/internal/metrics"
	"github.com/creatorshive/arrisd/internal/model"
	"github.com/creatorshive/arrisd/internal/uds"
)

// registerHandlers wires the UDS control surface to the queue service.
func (d *Daemon) registerHandlers() {
	d.server.Handle("ping", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("shutdown", func(req *uds.Request) *uds.Response {
		d.log(LogLevelInfo, "shutdown requested via UDS")
		go d.Shutdown()
		return uds.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})

	d.server.Handle("enqueue", d.handleEnqueue)
	d.server.Handle("claim", d.handleClaim)
	d.server.Handle("start", d.handleStart)
	d.server.Handle("complete", d.handleComplete)
	d.server.Handle("position", d.handlePosition)
	d.server.Handle("creator_items", d.handleCreatorItems)
	d.server.Handle("feed", d.handleFeed)
	d.server.Handle("stats", d.handleStats)
	d.server.Handle("live", d.handleLive)
	d.server.Handle("sweep", d.handleSweep)
	d.server.Handle("dashboard", d.handleDashboard)
}

type enqueueParams struct {
	RequestID     string `json:"request_id"`
	Tier          string `json:"tier"`
	Priority      string `json:"priority"`
	CreatorID     string `json:"creator_id"`
	CreatorName   string `json:"creator_name"`
	ProposalID    string `json:"proposal_id"`
	ProposalTitle string `json:"proposal_title"`
}

func (d *Daemon) handleEnqueue(req *uds.Request) *uds.Response {
	var p enqueueParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}
	if p.RequestID == "" {
		return uds.ErrorResponse(uds.ErrCodeValidation, "request_id is required")
	}
	if p.Priority != "" && !model.IsValidPriority(model.Priority(p.Priority)) {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("invalid priority: %q", p.Priority))
	}

	item := d.svc.Enqueue(arris.EnqueueRequest{
		RequestID:     p.RequestID,
		Tier:          p.Tier,
		Priority:      model.Priority(p.Priority),
		CreatorID:     p.CreatorID,
		CreatorName:   p.CreatorName,
		ProposalID:    p.ProposalID,
		ProposalTitle: p.ProposalTitle,
	})
	metrics.RequestsEnqueued.WithLabelValues(string(item.Priority)).Inc()

	return uds.SuccessResponse(item)
}

func (d *Daemon) handleClaim(req *uds.Request) *uds.Response {
	// Empty queue is a sentinel, not an error
	item := d.svc.StartNext()
	return uds.SuccessResponse(map[string]any{"item": item})
}

type startParams struct {
	RequestID string `json:"request_id"`
}

func (d *Daemon) handleStart(req *uds.Request) *uds.Response {
	var p startParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}
	if p.RequestID == "" {
		return uds.ErrorResponse(uds.ErrCodeValidation, "request_id is required")
	}

	item := d.svc.StartProcessing(p.RequestID)
	if item == nil {
		return uds.ErrorResponse(uds.ErrCodeNotFound, fmt.Sprintf("request %q is not queued", p.RequestID))
	}
	return uds.SuccessResponse(item)
}

type completeParams struct {
	RequestID      string  `json:"request_id"`
	ProcessingTime float64 `json:"processing_time"`
	Success        *bool   `json:"success"`
}

func (d *Daemon) handleComplete(req *uds.Request) *uds.Response {
	var p completeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}
	if p.RequestID == "" {
		return uds.ErrorResponse(uds.ErrCodeValidation, "request_id is required")
	}
	success := true
	if p.Success != nil {
		success = *p.Success
	}

	item := d.svc.CompleteProcessing(p.RequestID, p.ProcessingTime, success)
	if item == nil {
		return uds.ErrorResponse(uds.ErrCodeNotFound, fmt.Sprintf("request %q is not processing", p.RequestID))
	}

	status := "completed"
	if !success {
		status = "failed"
	}
	metrics.RequestsCompleted.WithLabelValues(string(item.Priority), status).Inc()
	metrics.ProcessingDuration.WithLabelValues(string(item.Priority)).Observe(p.ProcessingTime)

	return uds.SuccessResponse(item)
}

type positionParams struct {
	CreatorID  string `json:"creator_id"`
	ProposalID string `json:"proposal_id"`
}

func (d *Daemon) handlePosition(req *uds.Request) *uds.Response {
	var p positionParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}
	if p.CreatorID == "" || p.ProposalID == "" {
		return uds.ErrorResponse(uds.ErrCodeValidation, "creator_id and proposal_id are required")
	}

	info := d.svc.QueuePosition(p.CreatorID, p.ProposalID)
	if info == nil {
		return uds.ErrorResponse(uds.ErrCodeNotFound,
			fmt.Sprintf("no request found for creator %q proposal %q", p.CreatorID, p.ProposalID))
	}
	return uds.SuccessResponse(info)
}

type creatorItemsParams struct {
	CreatorID string `json:"creator_id"`
}

func (d *Daemon) handleCreatorItems(req *uds.Request) *uds.Response {
	var p creatorItemsParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}
	if p.CreatorID == "" {
		return uds.ErrorResponse(uds.ErrCodeValidation, "creator_id is required")
	}

	items := d.svc.CreatorItems(p.CreatorID)
	return uds.SuccessResponse(map[string]any{"items": items})
}

type feedParams struct {
	Limit           int  `json:"limit"`
	IncludeIdentity bool `json:"include_identity"`
}

func (d *Daemon) handleFeed(req *uds.Request) *uds.Response {
	var p feedParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
		}
	}

	feed := d.svc.ActivityFeed(p.Limit, p.IncludeIdentity)
	return uds.SuccessResponse(map[string]any{"activities": feed})
}

func (d *Daemon) handleStats(req *uds.Request) *uds.Response {
	return uds.SuccessResponse(d.svc.Stats())
}

func (d *Daemon) handleLive(req *uds.Request) *uds.Response {
	return uds.SuccessResponse(d.svc.Live())
}

func (d *Daemon) handleSweep(req *uds.Request) *uds.Response {
	evicted := d.svc.SweepAbandoned()
	for _, it := range evicted {
		metrics.RequestsCompleted.WithLabelValues(string(it.Priority), "swept").Inc()
	}

	ids := make([]string, 0, len(evicted))
	for _, it := range evicted {
		ids = append(ids, it.RequestID)
	}
	return uds.SuccessResponse(map[string]any{"evicted": len(evicted), "request_ids": ids})
}

func (d *Daemon) handleDashboard(req *uds.Request) *uds.Response {
	if err := d.dash.WriteFile(d.svc.Live()); err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, fmt.Sprintf("render dashboard: %v", err))
	}
	return uds.SuccessResponse(map[string]string{"path": d.dash.Path()})
}
