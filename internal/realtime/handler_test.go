package realtime

import (
	"encoding/json"
	"sync"
	"testing"
)

// TestParseMessage_TypedEnvelope는 type 필드가 있는 JSON 메시지 파싱을 검증합니다.
func TestParseMessage_TypedEnvelope(t *testing.T) {
	d := NewDispatcher()

	raw := `{"type":"metrics","payload":{"cpu":42}}`
	msg := d.Process(raw)

	if !msg.Parsed {
		t.Error("Parsed = false, want true")
	}
	if msg.Type != "metrics" {
		t.Errorf("Type = %q, want %q", msg.Type, "metrics")
	}
	if msg.Raw != raw {
		t.Errorf("Raw = %q, want %q", msg.Raw, raw)
	}

	var payload map[string]float64
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload 역직렬화 실패: %v", err)
	}
	if payload["cpu"] != 42 {
		t.Errorf("payload cpu = %v, want %v", payload["cpu"], 42.0)
	}
}

// TestParseMessage_InvalidJSON은 JSON이 아닌 메시지가 unparsed로 폴백하는지 검증합니다.
func TestParseMessage_InvalidJSON(t *testing.T) {
	d := NewDispatcher()

	raw := "이것은 JSON이 아닙니다"
	msg := d.Process(raw)

	if msg.Parsed {
		t.Error("Parsed = true, want false")
	}
	if msg.Type != TypeUnparsed {
		t.Errorf("Type = %q, want %q", msg.Type, TypeUnparsed)
	}
	if msg.Raw != raw {
		t.Errorf("Raw = %q, want %q", msg.Raw, raw)
	}
}

// TestParseMessage_MissingType은 type 필드가 없는 JSON이 unparsed로 폴백하는지 검증합니다.
func TestParseMessage_MissingType(t *testing.T) {
	d := NewDispatcher()

	msg := d.Process(`{"payload":{"cpu":42}}`)

	if msg.Parsed {
		t.Error("Parsed = true, want false")
	}
	if msg.Type != TypeUnparsed {
		t.Errorf("Type = %q, want %q", msg.Type, TypeUnparsed)
	}
}

// TestProcess_DispatchOrder는 핸들러가 등록 순서대로 호출되는지 검증합니다.
func TestProcess_DispatchOrder(t *testing.T) {
	d := NewDispatcher()

	var order []int
	d.RegisterHandler("alert", func(msg ProcessedMessage) {
		order = append(order, 1)
	})
	d.RegisterHandler("alert", func(msg ProcessedMessage) {
		order = append(order, 2)
	})
	d.RegisterHandler("alert", func(msg ProcessedMessage) {
		order = append(order, 3)
	})

	d.Process(`{"type":"alert","payload":{}}`)

	if len(order) != 3 {
		t.Fatalf("호출된 핸들러 수 = %d, want %d", len(order), 3)
	}
	for i, got := range order {
		if got != i+1 {
			t.Errorf("호출 순서[%d] = %d, want %d", i, got, i+1)
		}
	}
}

// TestProcess_TypeFilter는 타입이 다른 핸들러가 호출되지 않는지 검증합니다.
func TestProcess_TypeFilter(t *testing.T) {
	d := NewDispatcher()

	alertCalled := false
	metricsCalled := false
	d.RegisterHandler("alert", func(msg ProcessedMessage) { alertCalled = true })
	d.RegisterHandler("metrics", func(msg ProcessedMessage) { metricsCalled = true })

	d.Process(`{"type":"alert","payload":{}}`)

	if !alertCalled {
		t.Error("alert 핸들러가 호출되지 않음")
	}
	if metricsCalled {
		t.Error("metrics 핸들러가 호출됨, want 미호출")
	}
}

// TestProcess_UnparsedHandler는 unparsed 타입 핸들러로 파싱 실패 메시지를 받는지 검증합니다.
func TestProcess_UnparsedHandler(t *testing.T) {
	d := NewDispatcher()

	var received ProcessedMessage
	called := false
	d.RegisterHandler(TypeUnparsed, func(msg ProcessedMessage) {
		called = true
		received = msg
	})

	d.Process("plain text")

	if !called {
		t.Fatal("unparsed 핸들러가 호출되지 않음")
	}
	if received.Raw != "plain text" {
		t.Errorf("Raw = %q, want %q", received.Raw, "plain text")
	}
}

// TestProcess_PanicIsolation은 패닉하는 핸들러가 다른 핸들러를 막지 않는지 검증합니다.
func TestProcess_PanicIsolation(t *testing.T) {
	d := NewDispatcher()

	secondCalled := false
	d.RegisterHandler("alert", func(msg ProcessedMessage) {
		panic("핸들러 내부 오류")
	})
	d.RegisterHandler("alert", func(msg ProcessedMessage) {
		secondCalled = true
	})

	msg := d.Process(`{"type":"alert","payload":{}}`)

	if !secondCalled {
		t.Error("패닉 이후 두 번째 핸들러가 호출되지 않음")
	}
	if msg.Type != "alert" {
		t.Errorf("Type = %q, want %q", msg.Type, "alert")
	}
}

// TestUnregisterHandler는 핸들러 제거와 반환값을 검증합니다.
func TestUnregisterHandler(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.RegisterHandler("alert", func(msg ProcessedMessage) { called = true })

	if !d.UnregisterHandler("alert") {
		t.Error("UnregisterHandler(등록된 타입) = false, want true")
	}
	if d.UnregisterHandler("alert") {
		t.Error("UnregisterHandler(이미 제거된 타입) = true, want false")
	}
	if d.UnregisterHandler("없는타입") {
		t.Error("UnregisterHandler(미등록 타입) = true, want false")
	}

	d.Process(`{"type":"alert","payload":{}}`)
	if called {
		t.Error("제거된 핸들러가 호출됨")
	}
}

// TestDispatcher_ConcurrentAccess는 등록과 디스패치의 동시 실행을 검증합니다.
func TestDispatcher_ConcurrentAccess(t *testing.T) {
	d := NewDispatcher()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.RegisterHandler("metrics", func(msg ProcessedMessage) {})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Process(`{"type":"metrics","payload":{}}`)
			}
		}()
	}
	wg.Wait()
}
