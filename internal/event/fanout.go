package event

// FanOut feeds the engine's events to the persistence worker and the
// outbound publisher. The persist send blocks so the event log never loses
// an entry; the publish send drops when the consumer lags, since JetStream
// is a mirror of the log, not the source of truth.
type FanOut struct {
	persist chan<- Envelope
	publish chan<- Envelope
	onDrop  func()
}

// NewFanOut builds a fan-out sink. Either channel may be nil to disable
// that path. onDrop, if non-nil, is called for every envelope the publish
// path drops.
func NewFanOut(persist, publish chan<- Envelope, onDrop func()) *FanOut {
	return &FanOut{persist: persist, publish: publish, onDrop: onDrop}
}

func (f *FanOut) Emit(env Envelope) {
	if f.persist != nil {
		f.persist <- env
	}
	if f.publish != nil {
		select {
		case f.publish <- env:
		default:
			if f.onDrop != nil {
				f.onDrop()
			}
		}
	}
}
