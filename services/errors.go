package services

import (
	"errors"
	"fmt"
)

// Kind classifies why a route calculation failed.
type Kind string

const (
	KindInvalidRequest      Kind = "InvalidRequest"
	KindInvalidEndpoint     Kind = "InvalidEndpoint"
	KindNoPathFound         Kind = "NoPathFound"
	KindCollaboratorTimeout Kind = "CollaboratorTimeout"
	KindCollaboratorFailure Kind = "CollaboratorFailure"
	KindInternal            Kind = "InternalError"
)

// Stage names a step of the route pipeline.
type Stage string

const (
	StageReceived    Stage = "received"
	StageFetching    Stage = "fetching"
	StageFiltering   Stage = "filtering"
	StagePathFinding Stage = "path_finding"
	StageAssembling  Stage = "assembling"
	StageDone        Stage = "done"
)

// ErrNoPath is the cause carried by a KindNoPathFound error.
var ErrNoPath = errors.New("no safe path exists")

var errCollaboratorPanic = errors.New("collaborator panicked")

// RouteError is returned by RoutingService for every failed request.
type RouteError struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *RouteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s during %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not a RouteError.
func KindOf(err error) Kind {
	var re *RouteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
