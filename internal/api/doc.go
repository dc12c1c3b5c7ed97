// Package api provides the compute platform REST API.
package api
