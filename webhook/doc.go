// Package webhook exposes the HTTP surface of autopm: the tracker webhook
// endpoint, a health probe and the Prometheus scrape endpoint.
//
// Deliveries are acknowledged with 202 Accepted as soon as the payload is
// decoded. Processing continues in the background; Server.Shutdown waits for
// in-flight deliveries.
package webhook
