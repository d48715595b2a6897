package fields

import "testing"

func frozenDef() Definition { return Definition{} }
func mucDef() Definition    { return Definition{Signed: true} }
func pmucDef() Definition   { return Definition{Signed: true, PMUC: true} }
func notifyDef() Definition { return Definition{Notify: true} }

func mustField(t *testing.T, typ Type, value []byte) Field {
	t.Helper()
	f, err := NewField(typ, value)
	if err != nil {
		t.Fatalf("NewField(%s): %v", typ, err)
	}
	return f
}

func TestEncodeDecodeRoundTrip_Frozen(t *testing.T) {
	def := frozenDef()
	payload := mustField(t, PAYLOAD, []byte("Cubus demonstrativus"))
	date := mustField(t, DATE, []byte{0, 0, 0, 0, 1})
	nonce := mustField(t, NONCE, []byte{0, 0, 0, 0})
	flds := []Field{mustField(t, TYPE, []byte{0}), payload, date, nonce}

	frame, err := Encode(def, 0x00, flds)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frame) != FrameSize {
		t.Fatalf("frame size = %d, want %d", len(frame), FrameSize)
	}

	decoded, err := Decode(def, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := FirstOfType(decoded, PAYLOAD)
	if !ok {
		t.Fatalf("decoded PAYLOAD missing")
	}
	if string(got.Value) != "Cubus demonstrativus" {
		t.Fatalf("PAYLOAD = %q", got.Value)
	}

	frame2, err := Encode(def, 0x00, decoded)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if string(frame) != string(frame2) {
		t.Fatalf("binary round-trip mismatch")
	}
}

func TestEncodeDecodeRoundTrip_MUC(t *testing.T) {
	def := mucDef()
	pub := make([]byte, 32)
	pub[0] = 0xAB
	sig := make([]byte, 64)
	flds := []Field{
		mustField(t, TYPE, []byte{2}),
		mustField(t, PUBLIC_KEY, pub),
		mustField(t, USERNAME, []byte("alice")),
		mustField(t, DATE, []byte{0, 0, 0, 0, 2}),
		mustField(t, SIGNATURE, sig),
		mustField(t, NONCE, []byte{0, 0, 0, 0}),
	}
	frame, err := Encode(def, 0x02, flds)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(def, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pk, ok := FirstOfType(decoded, PUBLIC_KEY)
	if !ok || string(pk.Value) != string(pub) {
		t.Fatalf("PUBLIC_KEY round-trip failed")
	}
}

func TestEncodeDecodeRoundTrip_PMUC(t *testing.T) {
	def := pmucDef()
	pub := make([]byte, 32)
	sig := make([]byte, 64)
	flds := []Field{
		mustField(t, TYPE, []byte{3}),
		mustField(t, PUBLIC_KEY, pub),
		mustField(t, PAYLOAD, []byte("hello")),
		mustField(t, DATE, []byte{0, 0, 0, 0, 3}),
		mustField(t, PMUC_UPDATE_COUNT, []byte{0, 0, 0, 7}),
		mustField(t, SIGNATURE, sig),
		mustField(t, NONCE, []byte{0, 0, 0, 0}),
	}
	frame, err := Encode(def, 0x03, flds)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(def, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cnt, ok := FirstOfType(decoded, PMUC_UPDATE_COUNT)
	if !ok {
		t.Fatalf("PMUC_UPDATE_COUNT missing")
	}
	if cnt.Value[3] != 7 {
		t.Fatalf("PMUC_UPDATE_COUNT = %v", cnt.Value)
	}
}

func TestEncodeDecodeRoundTrip_Notify(t *testing.T) {
	def := notifyDef()
	recipient := make([]byte, 32)
	recipient[31] = 0x42
	flds := []Field{
		mustField(t, TYPE, []byte{4}),
		mustField(t, NOTIFY, recipient),
		mustField(t, DATE, []byte{0, 0, 0, 0, 1}),
		mustField(t, NONCE, []byte{0, 0, 0, 0}),
	}
	frame, err := Encode(def, 0x04, flds)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(def, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := FirstOfType(decoded, NOTIFY)
	if !ok || string(got.Value) != string(recipient) {
		t.Fatalf("NOTIFY round-trip failed")
	}
}

func TestEncodeRejectsFixedLengthMismatch(t *testing.T) {
	if _, err := NewField(PUBLIC_KEY, make([]byte, 31)); err == nil {
		t.Fatalf("expected FieldError for undersized PUBLIC_KEY")
	}
}

func TestEncodeOversizedBodyFails(t *testing.T) {
	def := frozenDef()
	huge := make([]byte, def.BodyLen())
	flds := []Field{
		mustField(t, TYPE, []byte{0}),
		mustField(t, PAYLOAD, huge),
		mustField(t, DATE, []byte{0, 0, 0, 0, 1}),
		mustField(t, NONCE, []byte{0, 0, 0, 0}),
	}
	if _, err := Encode(def, 0x00, flds); err == nil {
		t.Fatalf("expected FieldSizeError for oversized body")
	}
}

func TestCoreDefinitionHidesBodyTLV(t *testing.T) {
	def := frozenDef()
	flds := []Field{
		mustField(t, TYPE, []byte{0}),
		mustField(t, PAYLOAD, []byte("payload")),
		mustField(t, DATE, []byte{0, 0, 0, 0, 1}),
		mustField(t, NONCE, []byte{0, 0, 0, 0}),
	}
	frame, err := Encode(def, 0x00, flds)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	core := def
	core.Core = true
	decoded, err := Decode(core, frame)
	if err != nil {
		t.Fatalf("Decode core: %v", err)
	}
	if _, ok := FirstOfType(decoded, PAYLOAD); ok {
		t.Fatalf("core decode must not expose typed body fields")
	}
	raw, ok := FirstOfType(decoded, RAW_BODY)
	if !ok || len(raw.Value) != def.BodyLen() {
		t.Fatalf("core decode must expose the whole body as RAW_BODY")
	}
}

func TestPaddingGapOneIsImplicitTerminator(t *testing.T) {
	def := frozenDef()
	// Craft a payload that leaves exactly 1 byte of body gap.
	bodyLen := def.BodyLen()
	payload := make([]byte, bodyLen-2-1) // header(2) + value, leaving 1 byte gap
	flds := []Field{
		mustField(t, TYPE, []byte{0}),
		mustField(t, PAYLOAD, payload),
		mustField(t, DATE, []byte{0, 0, 0, 0, 1}),
		mustField(t, NONCE, []byte{0, 0, 0, 0}),
	}
	frame, err := Encode(def, 0x00, flds)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(def, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, _ := FirstOfType(decoded, PAYLOAD)
	if len(got.Value) != len(payload) {
		t.Fatalf("payload length changed across round trip: got %d want %d", len(got.Value), len(payload))
	}
}
