package moq

import (
	"io"

	"github.com/zsiec/moq/internal/moqerr"
)

// Message type IDs carried on the control streams (spec §6). These are
// distinct from the StreamXxx tags: a stream tag identifies the kind of
// stream; a message type identifies one message sent on it.
const (
	MsgClientSetup     uint64 = 0x01
	MsgServerSetup     uint64 = 0x02
	MsgAnnouncePlease  uint64 = 0x03
	MsgAnnounce        uint64 = 0x04
	MsgSubscribe       uint64 = 0x05
	MsgInfo            uint64 = 0x06
	MsgGroupDrop       uint64 = 0x07
	MsgSubscribeUpdate uint64 = 0x08
	MsgUnsubscribe     uint64 = 0x09
	MsgFetch           uint64 = 0x0a
	MsgFetchOK         uint64 = 0x0b
)

// AnnounceStatus discriminates the three kinds of Announce message
// (spec §4.4, §6).
type AnnounceStatus uint64

const (
	AnnounceEnded  AnnounceStatus = 0
	AnnounceActive AnnounceStatus = 1
	AnnounceLive   AnnounceStatus = 2
)

// ClientSetup is the first message sent on the Session stream.
type ClientSetup struct {
	Versions   []uint64
	Extensions ExtensionMap
}

// ServerSetup answers a ClientSetup.
type ServerSetup struct {
	Version    uint64
	Extensions ExtensionMap
}

// AnnouncePlease is sent by a subscriber to request Announce updates for
// every broadcast path under Prefix.
type AnnouncePlease struct {
	Prefix string
}

// Announce reports a broadcast becoming active or ending under a
// previously requested prefix, or marks the end of the initial
// snapshot (AnnounceLive carries no suffix).
type Announce struct {
	Status AnnounceStatus
	Suffix string
}

// Subscribe requests delivery of the named track within a broadcast.
type Subscribe struct {
	ID       uint64
	Path     string
	Priority int8
}

// Info answers a Subscribe once it is accepted.
type Info struct {
	Priority     int8
	CurrentGroup uint64
}

// GroupDrop notifies a subscriber that the publisher chose not to
// deliver one or more groups. Count coalesces contiguous drops sharing
// the same Code (spec §4.5, §9).
type GroupDrop struct {
	Sequence uint64
	Count    uint64
	Code     uint32
}

// SubscribeUpdate adjusts the delivery priority of an active
// subscription. Per the normative wire layout (spec §6) its priority
// field is a plain varint, unlike Subscribe's biased Int8.
type SubscribeUpdate struct {
	Priority uint64
}

// Unsubscribe cancels a previously issued Subscribe.
type Unsubscribe struct {
	ID uint64
}

// Fetch requests a bounded historical range of a track: a supplemental
// message, grounded on moq-transfork-proto's fetch handling, for the
// Fetch stream kind the spec names in §4.1 but does not detail.
type Fetch struct {
	ID         uint64
	Path       string
	StartGroup uint64
	StartObj   uint64
	EndGroup   uint64
}

// FetchOK answers a Fetch that the publisher will service.
type FetchOK struct {
	ID uint64
}

// GroupHeader begins a Group stream: the subscription it belongs to and
// its sequence number (spec §4.5, §6).
type GroupHeader struct {
	SubscribeID uint64
	Sequence    uint64
}

// FrameHeader precedes each frame's payload on a Group stream with its
// declared size, enabling pipelined writes without buffering (spec §4.3.3).
type FrameHeader struct {
	Size uint64
}

// --- encode ---

// Encode serializes a ClientSetup message, including its leading
// Varint(type=0x1) (spec §6): the Session stream's only self-identifying
// tag, since it is the first thing either side ever writes.
func (c ClientSetup) Encode() []byte {
	buf := appendVarint(nil, MsgClientSetup)
	buf = appendVarint(buf, uint64(len(c.Versions)))
	for _, v := range c.Versions {
		buf = appendVarint(buf, v)
	}
	buf = c.Extensions.encode(buf)
	return buf
}

// Encode serializes a ServerSetup payload. It carries no leading tag:
// it is the only message that can follow ClientSetup on the Session
// stream.
func (s ServerSetup) Encode() []byte {
	var buf []byte
	buf = appendVarint(buf, s.Version)
	buf = s.Extensions.encode(buf)
	return buf
}

// Encode serializes an AnnouncePlease message, including its leading
// StreamAnnounce tag: a freshly opened bidirectional stream otherwise
// gives a peer no way to tell an Announce stream from a Subscribe one
// (spec §4.1).
func (a AnnouncePlease) Encode() []byte {
	buf := appendVarint(nil, StreamAnnounce)
	return appendString(buf, a.Prefix)
}

// Encode serializes an Announce payload.
func (a Announce) Encode() []byte {
	buf := appendVarint(nil, uint64(a.Status))
	if a.Status == AnnounceActive || a.Status == AnnounceEnded {
		buf = appendString(buf, a.Suffix)
	}
	return buf
}

// Encode serializes a Subscribe message, including its leading
// StreamSubscribe tag (see AnnouncePlease.Encode).
func (s Subscribe) Encode() []byte {
	buf := appendVarint(nil, StreamSubscribe)
	buf = appendVarint(buf, s.ID)
	buf = appendString(buf, s.Path)
	buf = append(buf, EncodePriority(s.Priority))
	return buf
}

// Encode serializes an Info payload.
func (i Info) Encode() []byte {
	buf := []byte{EncodePriority(i.Priority)}
	return appendVarint(buf, i.CurrentGroup)
}

// Encode serializes a GroupDrop payload.
func (g GroupDrop) Encode() []byte {
	buf := appendVarint(nil, g.Sequence)
	buf = appendVarint(buf, g.Count)
	return append(buf, byte(g.Code>>24), byte(g.Code>>16), byte(g.Code>>8), byte(g.Code))
}

// Encode serializes a SubscribeUpdate message, including its leading
// MsgSubscribeUpdate tag: SubscribeUpdate and Unsubscribe share the one
// repeating reverse-direction slot on a Subscribe stream (spec §6), so
// the receiver needs a tag to tell them apart.
func (s SubscribeUpdate) Encode() []byte {
	buf := appendVarint(nil, MsgSubscribeUpdate)
	return appendVarint(buf, s.Priority)
}

// Encode serializes an Unsubscribe message, including its leading
// MsgUnsubscribe tag (see SubscribeUpdate.Encode).
func (u Unsubscribe) Encode() []byte {
	buf := appendVarint(nil, MsgUnsubscribe)
	return appendVarint(buf, u.ID)
}

// Encode serializes a Fetch message, including its leading StreamFetch
// tag (see AnnouncePlease.Encode).
func (f Fetch) Encode() []byte {
	buf := appendVarint(nil, StreamFetch)
	buf = appendVarint(buf, f.ID)
	buf = appendString(buf, f.Path)
	buf = appendVarint(buf, f.StartGroup)
	buf = appendVarint(buf, f.StartObj)
	buf = appendVarint(buf, f.EndGroup)
	return buf
}

// Encode serializes a FetchOK payload.
func (f FetchOK) Encode() []byte {
	return appendVarint(nil, f.ID)
}

// Encode serializes a GroupHeader, including the StreamGroup tag.
func (g GroupHeader) Encode() []byte {
	buf := appendVarint(nil, StreamGroup)
	buf = appendVarint(buf, g.SubscribeID)
	buf = appendVarint(buf, g.Sequence)
	return buf
}

// Encode serializes a FrameHeader.
func (f FrameHeader) Encode() []byte {
	return appendVarint(nil, f.Size)
}

// --- decode ---
//
// Every ReadXxx below decodes its message directly off a stream, field
// by field, with no intermediate length-prefixed buffer: a short read
// simply blocks on the underlying io.Reader until more bytes arrive,
// which is the literal byte layout spec.md §6 documents for each
// message. Tags are read only where the wire format actually needs one
// to disambiguate what follows (see the matching Encode comments).

// ReadClientSetup reads a ClientSetup message, including its leading
// Varint(type=0x1).
func ReadClientSetup(r io.Reader) (ClientSetup, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return ClientSetup{}, err
	}
	if tag != MsgClientSetup {
		return ClientSetup{}, moqerr.New(moqerr.ProtocolViolation)
	}
	var cs ClientSetup
	n, err := ReadVarintFrom(br)
	if err != nil {
		return cs, err
	}
	cs.Versions = make([]uint64, n)
	for i := range cs.Versions {
		if cs.Versions[i], err = ReadVarintFrom(br); err != nil {
			return cs, err
		}
	}
	cs.Extensions, err = readExtensionMapFrom(br)
	return cs, err
}

// ReadServerSetup reads a ServerSetup message (see ServerSetup.Encode).
func ReadServerSetup(r io.Reader) (ServerSetup, error) {
	br := NewByteReader(r)
	var ss ServerSetup
	var err error
	ss.Version, err = ReadVarintFrom(br)
	if err != nil {
		return ss, err
	}
	ss.Extensions, err = readExtensionMapFrom(br)
	return ss, err
}

// ReadAnnouncePlease reads an AnnouncePlease message, including its
// leading StreamAnnounce tag.
func ReadAnnouncePlease(r io.Reader) (AnnouncePlease, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return AnnouncePlease{}, err
	}
	if tag != StreamAnnounce {
		return AnnouncePlease{}, moqerr.New(moqerr.UnexpectedStream)
	}
	return readAnnouncePleaseBody(br)
}

// ReadAnnouncePleaseBody reads an AnnouncePlease's fields after its
// leading StreamAnnounce tag has already been consumed by the caller —
// used when dispatching a freshly accepted bidirectional stream, which
// must peek the tag before it knows which message follows it.
func ReadAnnouncePleaseBody(br ByteReader) (AnnouncePlease, error) {
	return readAnnouncePleaseBody(br)
}

func readAnnouncePleaseBody(br ByteReader) (AnnouncePlease, error) {
	prefix, err := ReadStringFrom(br)
	return AnnouncePlease{Prefix: prefix}, err
}

// ReadAnnounce reads an Announce message (see Announce.Encode).
func ReadAnnounce(r io.Reader) (Announce, error) {
	br := NewByteReader(r)
	status, err := ReadVarintFrom(br)
	if err != nil {
		return Announce{}, err
	}
	a := Announce{Status: AnnounceStatus(status)}
	switch a.Status {
	case AnnounceActive, AnnounceEnded:
		if a.Suffix, err = ReadStringFrom(br); err != nil {
			return Announce{}, err
		}
	case AnnounceLive:
	default:
		return Announce{}, moqerr.New(moqerr.Decode)
	}
	return a, nil
}

// ReadSubscribe reads a Subscribe message, including its leading
// StreamSubscribe tag.
func ReadSubscribe(r io.Reader) (Subscribe, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return Subscribe{}, err
	}
	if tag != StreamSubscribe {
		return Subscribe{}, moqerr.New(moqerr.UnexpectedStream)
	}
	return readSubscribeBody(br)
}

// ReadSubscribeBody reads a Subscribe's fields after its leading
// StreamSubscribe tag has already been consumed (see
// ReadAnnouncePleaseBody).
func ReadSubscribeBody(br ByteReader) (Subscribe, error) {
	return readSubscribeBody(br)
}

func readSubscribeBody(br ByteReader) (Subscribe, error) {
	var s Subscribe
	var err error
	s.ID, err = ReadVarintFrom(br)
	if err != nil {
		return s, err
	}
	s.Path, err = ReadStringFrom(br)
	if err != nil {
		return s, err
	}
	b, err := br.ReadByte()
	if err != nil {
		return s, moqerr.Wrap(moqerr.Decode, err)
	}
	s.Priority = DecodePriority(b)
	return s, nil
}

// ReadInfo reads an Info message (see Info.Encode).
func ReadInfo(r io.Reader) (Info, error) {
	br := NewByteReader(r)
	var i Info
	b, err := br.ReadByte()
	if err != nil {
		return i, moqerr.Wrap(moqerr.Decode, err)
	}
	i.Priority = DecodePriority(b)
	i.CurrentGroup, err = ReadVarintFrom(br)
	return i, err
}

// ReadGroupDrop reads a GroupDrop message (see GroupDrop doc comment).
func ReadGroupDrop(r io.Reader) (GroupDrop, error) {
	br := NewByteReader(r)
	var g GroupDrop
	var err error
	g.Sequence, err = ReadVarintFrom(br)
	if err != nil {
		return g, err
	}
	g.Count, err = ReadVarintFrom(br)
	if err != nil {
		return g, err
	}
	for i := 0; i < 4; i++ {
		b, err := br.ReadByte()
		if err != nil {
			return g, moqerr.Wrap(moqerr.Decode, err)
		}
		g.Code = g.Code<<8 | uint32(b)
	}
	return g, nil
}

// ReadSubscribeUpdate reads a SubscribeUpdate message, including its
// leading MsgSubscribeUpdate tag (see SubscribeUpdate.Encode).
func ReadSubscribeUpdate(r io.Reader) (SubscribeUpdate, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return SubscribeUpdate{}, err
	}
	if tag != MsgSubscribeUpdate {
		return SubscribeUpdate{}, moqerr.New(moqerr.ProtocolViolation)
	}
	p, err := ReadVarintFrom(br)
	return SubscribeUpdate{Priority: p}, err
}

// ReadUnsubscribe reads an Unsubscribe message, including its leading
// MsgUnsubscribe tag (see SubscribeUpdate.Encode).
func ReadUnsubscribe(r io.Reader) (Unsubscribe, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return Unsubscribe{}, err
	}
	if tag != MsgUnsubscribe {
		return Unsubscribe{}, moqerr.New(moqerr.ProtocolViolation)
	}
	id, err := ReadVarintFrom(br)
	return Unsubscribe{ID: id}, err
}

// SubscriberMessage is one of the two message types a subscriber may
// send back on an active Subscribe stream, discriminated by whichever
// of Update or Unsubscribe is non-nil.
type SubscriberMessage struct {
	Update      *SubscribeUpdate
	Unsubscribe *Unsubscribe
}

// ReadSubscriberMessage reads whichever of SubscribeUpdate or
// Unsubscribe the peer sent next on a Subscribe stream, discriminated
// by the tag leading their shared reverse-direction slot (spec §6).
func ReadSubscriberMessage(r io.Reader) (SubscriberMessage, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return SubscriberMessage{}, err
	}
	switch tag {
	case MsgSubscribeUpdate:
		p, err := ReadVarintFrom(br)
		if err != nil {
			return SubscriberMessage{}, err
		}
		return SubscriberMessage{Update: &SubscribeUpdate{Priority: p}}, nil
	case MsgUnsubscribe:
		id, err := ReadVarintFrom(br)
		if err != nil {
			return SubscriberMessage{}, err
		}
		return SubscriberMessage{Unsubscribe: &Unsubscribe{ID: id}}, nil
	default:
		return SubscriberMessage{}, moqerr.New(moqerr.ProtocolViolation)
	}
}

// ReadFetch reads a Fetch message, including its leading StreamFetch tag.
func ReadFetch(r io.Reader) (Fetch, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return Fetch{}, err
	}
	if tag != StreamFetch {
		return Fetch{}, moqerr.New(moqerr.UnexpectedStream)
	}
	var f Fetch
	if f.ID, err = ReadVarintFrom(br); err != nil {
		return f, err
	}
	if f.Path, err = ReadStringFrom(br); err != nil {
		return f, err
	}
	if f.StartGroup, err = ReadVarintFrom(br); err != nil {
		return f, err
	}
	if f.StartObj, err = ReadVarintFrom(br); err != nil {
		return f, err
	}
	f.EndGroup, err = ReadVarintFrom(br)
	return f, err
}

// ReadFetchOK reads a FetchOK message (see FetchOK.Encode).
func ReadFetchOK(r io.Reader) (FetchOK, error) {
	br := NewByteReader(r)
	id, err := ReadVarintFrom(br)
	return FetchOK{ID: id}, err
}

// ReadGroupHeader reads a Group stream header, including its leading
// StreamGroup tag.
func ReadGroupHeader(r io.Reader) (GroupHeader, error) {
	br := NewByteReader(r)
	tag, err := ReadVarintFrom(br)
	if err != nil {
		return GroupHeader{}, err
	}
	if tag != StreamGroup {
		return GroupHeader{}, moqerr.New(moqerr.UnexpectedStream)
	}
	var g GroupHeader
	if g.SubscribeID, err = ReadVarintFrom(br); err != nil {
		return g, err
	}
	g.Sequence, err = ReadVarintFrom(br)
	return g, err
}

// ReadFrameHeader reads a Frame header.
func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	br := NewByteReader(r)
	size, err := ReadVarintFrom(br)
	return FrameHeader{Size: size}, err
}
