package pairing

import "fmt"

// ContentTopic derives the pub/sub content topic two parties rendezvous
// on from the QR's application identity fields, per spec.md §6.2.
func ContentTopic(q QRCode) string {
	return fmt.Sprintf("/%s/%s/%s/proto", q.ApplicationName, q.ApplicationVersion, q.ShardID)
}
