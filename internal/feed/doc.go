// Package feed streams polling store values to WebSocket clients.
//
// A Hub fans every store notification out to the connected clients. It only
// holds subscriptions on its sources while at least one client is connected,
// so stores fed solely by the hub poll only while somebody is watching.
//
// Each message is a JSON object:
//
//	{"method":"getBlocks","received_at":"2024-01-15T12:00:00Z","records":[...]}
//
// Clients get the current value of every source right after connecting and
// every update after that. A client that cannot keep up loses messages
// rather than slowing down the other clients or the stores.
package feed
