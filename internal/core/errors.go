package core

import "errors"

var (
	ErrInvalidTile = errors.New("invalid tile")
	ErrInvalidLng  = errors.New("invalid longitude")
	ErrInvalidLat  = errors.New("invalid latitude")
	ErrInvalidZoom = errors.New("invalid zoom")
	ErrInvalidBbox = errors.New("invalid bbox")
	ErrBadQuadkey  = errors.New("invalid quadkey")

	ErrNotFound      = errors.New("not found")
	ErrWriteConflict = errors.New("write conflict")
)
