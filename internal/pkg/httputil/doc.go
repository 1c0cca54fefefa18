// Package httputil provides shared HTTP response/request utilities for the
// dashboard API handlers.
//
// The public tracking endpoints (/pixel, /click) do NOT use these helpers:
// their response shapes are part of the tracking protocol (a bare image, a
// redirect, text errors) and must never become JSON envelopes.
package httputil
