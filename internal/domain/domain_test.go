package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCommand_Encode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"list", FetchCommand("/www", true), "FETCH;/www;true"},
		{"read", FetchCommand("/www/index.html", false), "FETCH;/www/index.html;false"},
		{"write", WriteCommand("/a.txt", false, 2048), "WRITE;/a.txt;false;2048"},
		{"overwrite", WriteCommand("/a.txt", true, 0), "OVERWRITE;/a.txt;false;0"},
		{"mkdir", MkdirCommand("/www/img"), "WRITE;/www/img;true"},
		{"delete file", DeleteCommand("/a.txt", false), "DELETE;/a.txt;false"},
		{"delete dir", DeleteCommand("/www", true), "DELETE;/www;true"},
		{"untar", UntarCommand("/ui.tar"), "UNTAR;/ui.tar"},
		{"update", UpdateCommand("/fw.bin"), "UPDATE;/fw.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinPathAndBaseName(t *testing.T) {
	if got := JoinPath("/www/", "img"); got != "/www/img" {
		t.Errorf("JoinPath = %q", got)
	}
	if got := JoinPath("", "img"); got != "/img" {
		t.Errorf("JoinPath root = %q", got)
	}
	if got := BaseName("/www/img/logo.png"); got != "logo.png" {
		t.Errorf("BaseName = %q", got)
	}
	if got := BaseName("plain"); got != "plain" {
		t.Errorf("BaseName without slash = %q", got)
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		in       string
		wantType EventType
		wantArgs []string
	}{
		{"WSE_VALVE_ON;3", EventValveOn, []string{"3"}},
		{"WSE_VALVE_RENAME;2;Garden", EventValveRename, []string{"2", "Garden"}},
		{"WSE_INTERVAL_END_CHANGE;WEEKDAY_MO;4;12:00:00", EventIntervalEndChange, []string{"WEEKDAY_MO", "4", "12:00:00"}},
		{"WSE_DAY_DISABLE_ON;", EventDayDisableOn, []string{""}},
		{"SOMETHING", EventType("SOMETHING"), nil},
	}

	for _, tt := range tests {
		ev := ParseEvent(tt.in)
		if ev.Type != tt.wantType {
			t.Errorf("ParseEvent(%q).Type = %q, want %q", tt.in, ev.Type, tt.wantType)
		}
		if fmt.Sprint(ev.Args) != fmt.Sprint(tt.wantArgs) {
			t.Errorf("ParseEvent(%q).Args = %v, want %v", tt.in, ev.Args, tt.wantArgs)
		}
	}

	ev := ParseEvent("WSE_VALVE_TIMER_UPDATED;1;00:10:00")
	if id, ok := ev.IntArg(0); !ok || id != 1 {
		t.Errorf("IntArg(0) = %d, %v", id, ok)
	}
	if _, ok := ev.IntArg(5); ok {
		t.Error("IntArg beyond args should fail")
	}
	if ev.String() != "WSE_VALVE_TIMER_UPDATED;1;00:10:00" {
		t.Errorf("String() = %q", ev.String())
	}
}

func TestInterval_Helpers(t *testing.T) {
	iv := Interval{Start: "06:30:00", End: "07:15:30", Identifier: 2, Index: 1}
	if iv.IsEmpty() {
		t.Error("populated interval reported empty")
	}
	if got := iv.Duration(); got != 45*time.Minute+30*time.Second {
		t.Errorf("Duration() = %v", got)
	}

	iv.SetEmpty()
	if !iv.IsEmpty() || iv.Index != 1 {
		t.Errorf("SetEmpty() = %+v", iv)
	}

	reversed := Interval{Start: "10:00:00", End: "09:00:00"}
	if reversed.Duration() != 0 {
		t.Error("negative duration must clamp to zero")
	}

	if FormatClock(3*time.Hour+4*time.Minute+5*time.Second) != "03:04:05" {
		t.Error("FormatClock mismatch")
	}
	if _, err := ParseClock("12:00"); err == nil {
		t.Error("ParseClock accepted short value")
	}
}

func TestWeekdays(t *testing.T) {
	if WeekdayOf(time.Sunday) != WeekdaySunday || WeekdayOf(time.Saturday) != WeekdaySaturday {
		t.Error("WeekdayOf mapping mismatch")
	}
	if _, ok := ParseWeekday("WEEKDAY_XX"); ok {
		t.Error("ParseWeekday accepted unknown day")
	}
}

func TestStatusError(t *testing.T) {
	err := fmt.Errorf("list: %w", &StatusError{Op: VerbFetch, Code: StatusTargetNotExisting})
	code, ok := StatusCode(err)
	if !ok || code != StatusTargetNotExisting {
		t.Errorf("StatusCode() = %q, %v", code, ok)
	}
	if _, ok := StatusCode(errors.New("plain")); ok {
		t.Error("StatusCode matched a plain error")
	}
	if !StatusFileAppended.Known() || Status("WSFS_BOGUS").Known() {
		t.Error("Known() mismatch")
	}
}
