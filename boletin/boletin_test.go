package boletin_test

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// AVERAGING
// =============================================================================

func TestAverage(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   int
		ok     bool
	}{
		{name: "plain", values: []string{"85", "90", "95"}, want: 90, ok: true},
		{name: "skips blanks and text", values: []string{"80", "", "abc", "90"}, want: 85, ok: true},
		{name: "rounds half up", values: []string{"80", "81"}, want: 81, ok: true},
		{name: "numeric prefix", values: []string{"70a", "90"}, want: 80, ok: true},
		{name: "decimals", values: []string{"89.6"}, want: 90, ok: true},
		{name: "negative half rounds up", values: []string{"-2", "-3"}, want: -2, ok: true},
		{name: "exponent", values: []string{"1e2", "80"}, want: 90, ok: true},
		{name: "exponent after dot", values: []string{"8.5e1"}, want: 85, ok: true},
		{name: "dangling exponent", values: []string{"7e", "9E+"}, want: 8, ok: true},
		{name: "nothing numeric", values: []string{"", "x", "a85"}, ok: false},
		{name: "empty", values: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := boletin.Average(tt.values)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAverageText(t *testing.T) {
	assert.Equal(t, "90", boletin.AverageText([]boletin.Mark{"85", "90", "95"}))
	assert.Equal(t, "", boletin.AverageText([]boletin.Mark{"", "-"}))
}

// =============================================================================
// DEBOUNCER
// =============================================================================

func TestDebouncer_CollapsesBurst(t *testing.T) {
	// GIVEN: A debouncer with a short window
	// WHEN: Schedule is called many times in a row
	// THEN: The task runs exactly once after the burst

	var runs atomic.Int32
	d := boletin.NewDebouncer(20*time.Millisecond, func() { runs.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Schedule()
	}

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_FlushAndCancel(t *testing.T) {
	var runs atomic.Int32
	d := boletin.NewDebouncer(time.Hour, func() { runs.Add(1) })
	defer d.Stop()

	assert.False(t, d.Flush(), "nothing pending")

	d.Schedule()
	assert.True(t, d.Pending())
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())

	d.Schedule()
	d.Cancel()
	assert.False(t, d.Pending())
	assert.False(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())
}

func TestDebouncer_StopIgnoresSchedule(t *testing.T) {
	d := boletin.NewDebouncer(time.Millisecond, func() { t.Error("task ran after Stop") })
	d.Stop()

	d.Schedule()

	assert.False(t, d.Pending())
	time.Sleep(10 * time.Millisecond)
}

// =============================================================================
// TOPIC
// =============================================================================

func TestTopic_PublishInOrderAndUnsubscribe(t *testing.T) {
	var topic boletin.Topic[int]
	var got []string

	unsubA := topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })

	topic.Publish(1)
	unsubA()
	unsubA()
	topic.Publish(2)

	assert.Equal(t, []string{"a", "b", "b"}, got)
	assert.Equal(t, 1, topic.Len())
}

func TestTopic_SubscribeFromCallback(t *testing.T) {
	// GIVEN: A listener that subscribes another listener
	// WHEN: A value is published twice
	// THEN: The new listener only sees the second value

	var topic boletin.Topic[int]
	var late []int
	var once bool
	topic.Subscribe(func(int) {
		if !once {
			once = true
			topic.Subscribe(func(v int) { late = append(late, v) })
		}
	})

	topic.Publish(1)
	topic.Publish(2)

	assert.Equal(t, []int{2}, late)
}

// =============================================================================
// DATA MODEL
// =============================================================================

func TestGrade_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want boletin.Grade
	}{
		{in: `3`, want: 3},
		{in: `"4"`, want: 4},
		{in: `null`, want: 0},
		{in: `"x"`, want: 0},
	}
	for _, tt := range tests {
		var g boletin.Grade
		require.NoError(t, json.Unmarshal([]byte(tt.in), &g), tt.in)
		assert.Equal(t, tt.want, g, tt.in)
	}
	assert.Equal(t, boletin.Grade(1), boletin.Grade(0).OrDefault())
}

func TestMark_UnmarshalJSON_AcceptsLooseTypes(t *testing.T) {
	var c boletin.Competency
	require.NoError(t, json.Unmarshal([]byte(`{"name":"C1","p1":85,"p2":"90","p3":null,"p4":true}`), &c))

	assert.Equal(t, boletin.Mark("85"), c.P1)
	assert.Equal(t, boletin.Mark("90"), c.P2)
	assert.Equal(t, boletin.Mark(""), c.P3)
	assert.Equal(t, boletin.Mark("true"), c.P4)
}

func TestSubjectsForGrade(t *testing.T) {
	for g := boletin.MinGrade; g <= boletin.MaxGrade; g++ {
		subjects := boletin.SubjectsForGrade(g)
		require.Len(t, subjects, len(boletin.SubjectNames(g)))
		for _, s := range subjects {
			require.Len(t, s.Competencies, 3)
			assert.Equal(t, "C3", s.Competencies[2].Name)
		}
	}
}

func TestTierPolicy_Default(t *testing.T) {
	p := boletin.DefaultTierPolicy()

	assert.Equal(t, boletin.TierBasic, p.TierFor(2))
	assert.Equal(t, boletin.TierAdvanced, p.TierFor(3))
	assert.Equal(t, boletin.TierAdvanced, p.TierFor(6))
	assert.Equal(t, boletin.TierBasic, p.TierFor(0), "invalid grades render as grade 1")
	assert.False(t, p.ShowsStatus(2))
	assert.True(t, p.ShowsStatus(3))
}

func TestSectionState_CloneIsDeep(t *testing.T) {
	st := boletin.DefaultState(boletin.SchoolData{})
	st.Subjects = boletin.SubjectsForGrade(1)
	st.StudentList = []string{"Ana"}
	st.Roster["Ana"] = st.Record()

	cp := st.Clone()
	cp.Subjects[0].Competencies[0].P1 = "99"
	cp.StudentList[0] = "Beto"
	cp.Observations["p1"] = "x"

	assert.Equal(t, boletin.Mark(""), st.Subjects[0].Competencies[0].P1)
	assert.Equal(t, "Ana", st.StudentList[0])
	assert.Equal(t, "", st.Observations["p1"])
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestStateDocument_PartialStateKeepsDefaults(t *testing.T) {
	// GIVEN: A document whose state only carries a grade and a roster list
	// WHEN: It is decoded over the default state
	// THEN: Missing fields come from the defaults and buckets are repaired

	doc, err := boletin.ParseStateDocument([]byte(`{"version":1,"timestamp":5,"state":{"grade":"2","studentList":["Ana"],"attendance":{"p1":{"pres":"3"}}}}`))
	require.NoError(t, err)

	st, ok, err := doc.DecodeState(boletin.DefaultState(boletin.SchoolData{Centro: "Escuela"}))

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, boletin.Grade(2), st.Grade)
	assert.Equal(t, []string{"Ana"}, st.StudentList)
	assert.Equal(t, "Escuela", st.SchoolData.Centro)
	assert.Equal(t, boletin.Mark("3"), st.Attendance["p1"].Pres)
	assert.Contains(t, st.Attendance, boletin.PeriodTotal)
	assert.Equal(t, 14, st.Settings.FontSize)
}

func TestStateDocument_NoState(t *testing.T) {
	doc, err := boletin.ParseStateDocument([]byte(`{"version":2,"timestamp":5}`))
	require.NoError(t, err)

	_, ok, err := doc.DecodeState(boletin.DefaultState(boletin.SchoolData{}))

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackup_CountsAndTimestamps(t *testing.T) {
	b := boletin.Backup{
		Timestamp: 100,
		Data: map[string]boletin.StateDocument{
			"a": {Timestamp: 300, State: json.RawMessage(`{"studentList":["x","y"]}`)},
			"b": {Timestamp: 200, State: json.RawMessage(`{"studentList":["z"]}`)},
			"c": {Timestamp: 50, State: json.RawMessage(`not json`)},
		},
	}

	assert.Equal(t, 3, b.StudentCount())
	assert.Equal(t, int64(300), b.LastModified())
	assert.Equal(t, int64(100), boletin.Backup{Timestamp: 100}.LastModified())
}

func TestBackup_HasEnteredData(t *testing.T) {
	// GIVEN: Backups holding only the untouched placeholder, an edited
	//        placeholder, and a named student
	// WHEN: HasEnteredData is asked
	// THEN: Only the untouched placeholder counts as no data
	doc := func(state string) boletin.Backup {
		return boletin.Backup{Data: map[string]boletin.StateDocument{"s": {State: json.RawMessage(state)}}}
	}
	placeholder := `{"studentList":["Estudiante 1"],"roster":{"Estudiante 1":{"subjects":[{"name":"Lengua","competencies":[{"name":"C1"}]}],"attendance":{"p1":{}},"observations":{"p1":""}}}}`
	edited := `{"studentList":["Estudiante 1"],"roster":{"Estudiante 1":{"observations":{"p1":"Bien"}}}}`

	assert.False(t, boletin.Backup{}.HasEnteredData())
	assert.False(t, doc(placeholder).HasEnteredData())
	assert.True(t, doc(edited).HasEnteredData())
	assert.True(t, doc(`{"studentList":["Ana"]}`).HasEnteredData())
}

func TestStudentRecord_Blank(t *testing.T) {
	rec := boletin.StudentRecord{
		Subjects:     []boletin.Subject{{Name: "Lengua", Competencies: []boletin.Competency{{Name: "C1"}}}},
		Attendance:   boletin.EmptyAttendance(),
		Observations: boletin.EmptyObservations(),
	}
	assert.True(t, rec.Blank())

	rec.Subjects[0].Competencies[0].P1 = "90"
	assert.False(t, rec.Blank())
}

func TestDetectBackupShape(t *testing.T) {
	tests := []struct {
		in   string
		want boletin.BackupShape
	}{
		{in: `{"sections":[],"data":{}}`, want: boletin.ShapeCurrent},
		{in: `{"studentList":["a"]}`, want: boletin.ShapeLegacy},
		{in: `{"roster":{}}`, want: boletin.ShapeLegacy},
		{in: `{"sections":null,"roster":{}}`, want: boletin.ShapeLegacy},
		{in: `{"foo":1}`, want: boletin.ShapeUnknown},
	}
	for _, tt := range tests {
		got, err := boletin.DetectBackupShape([]byte(tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := boletin.DetectBackupShape([]byte(`[`))
	assert.Error(t, err)
}

func TestLayout_EncodeIsCanonical(t *testing.T) {
	a := boletin.Layout{"b": {Left: "1px"}, "a": {Top: "2px"}}
	b := boletin.Layout{"a": {Top: "2px"}, "b": {Left: "1px"}}

	assert.Equal(t, a.Encode(), b.Encode())
	assert.Equal(t, []string{"a", "b"}, a.IDs())
}

func TestParseLayout_RejectsMalformedRects(t *testing.T) {
	_, err := boletin.ParseLayout([]byte(`{"a":{"left":"calc(1px)"}}`))
	assert.True(t, errors.Is(err, boletin.ErrInvalidLayout))

	l, err := boletin.ParseLayout([]byte(`{"a":{"left":"12.5px","top":"10%","width":"3mm","height":"4"}}`))
	require.NoError(t, err)
	assert.Equal(t, "12.5px", l["a"].Left)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorHelpers(t *testing.T) {
	assert.True(t, boletin.IsNotFound(errors.Join(boletin.ErrStudentNotFound)))
	assert.True(t, boletin.IsClientError(boletin.ErrInvalidGrade))
	assert.True(t, boletin.IsConflict(boletin.ErrLastSection))
	assert.False(t, boletin.IsConflict(boletin.ErrInvalidGrade))

	err := &boletin.CorruptDocumentError{Kind: "layout", Key: "3", Err: boletin.ErrInvalidLayout}
	assert.True(t, errors.Is(err, boletin.ErrInvalidLayout))
	assert.Contains(t, err.Error(), `corrupt layout document "3"`)
}
