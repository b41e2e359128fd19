package pgcore

// Notification is an asynchronous LISTEN/NOTIFY message delivered by the
// backend. Notifications are decoded whenever input is consumed, regardless
// of which operation is active, and queued on the connection until collected.
type Notification struct {
	PID     uint32
	Channel string
	Payload string
}

// Notifications drains the queue of notifications received so far.
func (c *Conn) Notifications() []Notification {
	out := c.notifications
	c.notifications = nil
	return out
}
