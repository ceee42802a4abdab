package domain

import "testing"

func TestComputeStatus_FailureDominates(t *testing.T) {
	// FAILURE побеждает независимо от количества и порядка остальных
	cases := [][]Status{
		{StatusFailure},
		{StatusSuccess, StatusFailure},
		{StatusFailure, StatusSuccess, StatusSuccess},
		{StatusPending, StatusStarted, StatusFailure, StatusSuccess},
		{StatusRevoked, StatusFailure},
	}

	for _, statuses := range cases {
		if got := ComputeStatus(statuses); got != StatusFailure {
			t.Errorf("ComputeStatus(%v) = %s, want FAILURE", statuses, got)
		}
	}
}

func TestComputeStatus_RevokedBeatsInFlight(t *testing.T) {
	cases := [][]Status{
		{StatusRevoked},
		{StatusRevoked, StatusSuccess},
		{StatusRevoked, StatusPending, StatusStarted},
	}

	for _, statuses := range cases {
		if got := ComputeStatus(statuses); got != StatusRevoked {
			t.Errorf("ComputeStatus(%v) = %s, want REVOKED", statuses, got)
		}
	}
}

func TestComputeStatus_InFlightIsStarted(t *testing.T) {
	// Без FAILURE/REVOKED любой PENDING или STARTED означает,
	// что работа ещё идёт
	cases := [][]Status{
		{StatusPending},
		{StatusStarted},
		{StatusSuccess, StatusPending},
		{StatusSuccess, StatusStarted, StatusSuccess},
	}

	for _, statuses := range cases {
		if got := ComputeStatus(statuses); got != StatusStarted {
			t.Errorf("ComputeStatus(%v) = %s, want STARTED", statuses, got)
		}
	}
}

func TestComputeStatus_AllSuccess(t *testing.T) {
	got := ComputeStatus([]Status{StatusSuccess, StatusSuccess, StatusSuccess})
	if got != StatusSuccess {
		t.Errorf("ComputeStatus(all SUCCESS) = %s, want SUCCESS", got)
	}
}

func TestComputeStatus_Empty(t *testing.T) {
	if got := ComputeStatus(nil); got != StatusPending {
		t.Errorf("ComputeStatus(nil) = %s, want PENDING", got)
	}
	if got := ComputeStatus([]Status{}); got != StatusPending {
		t.Errorf("ComputeStatus([]) = %s, want PENDING", got)
	}
}

func TestComputeStatus_GroupingInvariant(t *testing.T) {
	// Для принятой политики доминирования сводка объединённого списка
	// совпадает со сводкой посчитанных по частям результатов
	a := []Status{StatusSuccess, StatusFailure}
	b := []Status{StatusSuccess, StatusPending}

	merged := append(append([]Status{}, a...), b...)
	whole := ComputeStatus(merged)
	byParts := ComputeStatus([]Status{ComputeStatus(a), ComputeStatus(b)})

	if whole != byParts {
		t.Errorf("grouped = %s, flat = %s", byParts, whole)
	}
}

func TestMergeTaskStatuses(t *testing.T) {
	current := map[string]Status{
		"file_transcode":                 StatusSuccess,
		"file_video_extract_frames":      StatusPending,
		"file_video_metadata_extraction": StatusSuccess,
	}
	legacy := map[string]Status{
		"file_transcode": StatusFailure,
		"file_download":  StatusSuccess,
	}

	merged := MergeTaskStatuses(current, legacy)

	if merged["file_transcode"] != StatusFailure {
		t.Errorf("file_transcode = %s, want FAILURE", merged["file_transcode"])
	}
	if merged["file_download"] != StatusSuccess {
		t.Errorf("file_download = %s, want SUCCESS", merged["file_download"])
	}
	if merged["file_video_extract_frames"] != StatusStarted {
		t.Errorf("file_video_extract_frames = %s, want STARTED", merged["file_video_extract_frames"])
	}
	if merged["file_video_metadata_extraction"] != StatusSuccess {
		t.Errorf("file_video_metadata_extraction = %s, want SUCCESS", merged["file_video_metadata_extraction"])
	}
}

func TestFlowStatus_Aggregation(t *testing.T) {
	flow := &Flow{}

	tasks := []Task{
		{Status: StatusSuccess},
		{Status: StatusSuccess},
	}
	if got := flow.Status(tasks); got != StatusSuccess {
		t.Errorf("flow status = %s, want SUCCESS", got)
	}

	tasks[1].Status = StatusFailure
	if got := flow.Status(tasks); got != StatusFailure {
		t.Errorf("flow status = %s, want FAILURE", got)
	}

	if got := flow.Status(nil); got != StatusPending {
		t.Errorf("flow status without tasks = %s, want PENDING", got)
	}
}
