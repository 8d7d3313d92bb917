package types

import (
	"encoding/json"
	"testing"
)

type collaboratorStub struct {
	Email      string      `json:"email"`
	Percentage FlexDecimal `json:"percentage"`
}

func TestFlexListSingleObject(t *testing.T) {
	var body struct {
		Collaborators FlexList[collaboratorStub] `json:"collaborators"`
	}
	if err := json.Unmarshal([]byte(`{"collaborators": {"email": "a@x.com", "percentage": 100}}`), &body); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(body.Collaborators) != 1 || body.Collaborators[0].Email != "a@x.com" {
		t.Errorf("Expected one collaborator, got %+v", body.Collaborators)
	}
}

func TestFlexListArray(t *testing.T) {
	var list FlexList[collaboratorStub]
	if err := json.Unmarshal([]byte(`[{"email":"a@x.com"},{"email":"b@x.com"}]`), &list); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(list.Slice()) != 2 {
		t.Errorf("Expected 2 items, got %d", len(list))
	}
}

func TestFlexDecimalForms(t *testing.T) {
	cases := map[string]string{
		`60`:       "60",
		`"40.5"`:   "40.5",
		`"37.5%"`:  "37.5",
		`" 12 % "`: "12",
		`""`:       "0",
		`null`:     "0",
	}
	for input, want := range cases {
		var d FlexDecimal
		if err := json.Unmarshal([]byte(input), &d); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", input, err)
			continue
		}
		if d.String() != want {
			t.Errorf("Unmarshal(%s) = %s, want %s", input, d.String(), want)
		}
	}
}

func TestFlexDecimalInvalid(t *testing.T) {
	var d FlexDecimal
	if err := json.Unmarshal([]byte(`"sixty"`), &d); err == nil {
		t.Error("Expected error for non-numeric string")
	}
}
