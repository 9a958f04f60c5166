// Package monitor exposes the detector's live state: a JSON status
// endpoint, a decision timeline chart, the decision log admin routes and
// a gRPC health service that reports SERVING once pose and route inputs
// have arrived.
package monitor
