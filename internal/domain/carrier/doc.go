// Package carrier defines the domain model for direct carrier integrations:
// the Client port implemented per carrier network (UPS, FedEx), the stored
// connection aggregate, the network-agnostic result types returned to callers,
// and the static service identity table that maps between vendor-native codes,
// broker codes, and canonical service identities.
package carrier
