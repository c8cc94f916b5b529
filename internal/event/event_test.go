package event

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		payload string
		check   func(t *testing.T, got any)
		wantErr error
	}{
		{
			name:    "sms",
			kind:    KindSMS,
			payload: `{"sender":"+447700900123","message":"hi"}`,
			check: func(t *testing.T, got any) {
				sms, ok := got.(SMS)
				if !ok {
					t.Fatalf("Decode() type = %T, want SMS", got)
				}
				if sms.Message != "hi" || sms.Sender != "+447700900123" {
					t.Errorf("Decode() = %+v", sms)
				}
				if sms.ReceivedAt.IsZero() {
					t.Error("ReceivedAt not defaulted")
				}
			},
		},
		{
			name:    "notification",
			kind:    KindNotification,
			payload: `{"package":"com.example.mail","app":"Mail","title":"New","text":"body"}`,
			check: func(t *testing.T, got any) {
				n, ok := got.(Notification)
				if !ok {
					t.Fatalf("Decode() type = %T, want Notification", got)
				}
				if n.App != "Mail" || n.Package != "com.example.mail" {
					t.Errorf("Decode() = %+v", n)
				}
			},
		},
		{
			name:    "device state",
			kind:    KindDeviceState,
			payload: `{"device_id":"light-01","protocol":"knx","state":{"on":true}}`,
			check: func(t *testing.T, got any) {
				ds, ok := got.(DeviceState)
				if !ok {
					t.Fatalf("Decode() type = %T, want DeviceState", got)
				}
				if ds.DeviceID != "light-01" || ds.State["on"] != true {
					t.Errorf("Decode() = %+v", ds)
				}
			},
		},
		{
			name:    "device state without id",
			kind:    KindDeviceState,
			payload: `{"state":{}}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "malformed json",
			kind:    KindSMS,
			payload: `{"sender":`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unknown kind",
			kind:    Kind("fax"),
			payload: `{}`,
			wantErr: ErrUnknownKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.kind, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}
