package outbox

//go:generate mockgen -source=transport.go -destination=mock_transport_test.go -package=outbox

import "context"

// Delivery asks a transport to send one text. The transport reports each
// segment through the bound Confirmer using Token.
type Delivery struct {
	Token    string
	Address  string
	Segments []string
}

// Attachment is a file sent with a multimedia message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// MultimediaDelivery asks a transport to send one multimedia message as a
// single unit, confirmed as segment 0.
type MultimediaDelivery struct {
	Token      string
	Address    string
	Body       string
	Attachment Attachment
}

// Confirmer receives delivery reports. A nil err means the segment was
// delivered.
type Confirmer interface {
	Confirm(token string, segment int, err error)
}

// Transport submits texts for delivery. Deliver returns once the request
// is accepted; outcomes arrive later through the Confirmer.
type Transport interface {
	Bind(c Confirmer)
	Deliver(ctx context.Context, d Delivery) error
}

// MultimediaTransport is implemented by transports that can send
// attachments.
type MultimediaTransport interface {
	DeliverMultimedia(ctx context.Context, d MultimediaDelivery) error
}
