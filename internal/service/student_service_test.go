package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"course-advisor/backend/internal/dto"
	pkgerrors "course-advisor/backend/pkg/errors"
)

func setupTestStudentService() (StudentService, *testEnv) {
	env := newTestEnv(testSnapshot())
	return NewStudentService(env.cfg, env.repo, env.logger), env
}

func strp(s string) *string { return &s }

// ── 档案 ──

func TestStudentService_Get_NotFound(t *testing.T) {
	svc, _ := setupTestStudentService()
	ctx := context.Background()

	for _, id := range []string{"bad-id", "7b0c8f2e-0000-4000-8000-000000000000"} {
		if _, err := svc.Get(ctx, id); !errors.Is(err, ErrStudentNotFound) {
			t.Errorf("%s: 期望 ErrStudentNotFound，实际: %v", id, err)
		}
	}
}

func TestStudentService_List(t *testing.T) {
	svc, env := setupTestStudentService()
	env.addStudent("aa1", nil, "", allFree())
	env.addStudent("bb2", nil, "", allFree())
	env.addStudent("cc3", nil, "", allFree())

	list, total, err := svc.List(context.Background(), &dto.PaginationRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 3 || len(list) != 1 || list[0].NetID != "cc3" {
		t.Errorf("分页结果不符: total=%d list=%v", total, list)
	}
}

func TestStudentService_Update(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", nil, "", allFree())
	ctx := context.Background()

	if _, err := svc.Update(ctx, id, &dto.UpdateStudentRequest{}); !errors.Is(err, ErrEmptyUpdate) {
		t.Errorf("期望 ErrEmptyUpdate，实际: %v", err)
	}

	resp, err := svc.Update(ctx, id, &dto.UpdateStudentRequest{
		Interests:      strp("machine learning"),
		GraduationYear: strp("2028"),
	})
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if resp.Interests == nil || *resp.Interests != "machine learning" || resp.GraduationYear != "2028" {
		t.Errorf("更新字段未生效: %+v", resp)
	}
	if resp.Version != 2 {
		t.Errorf("期望 Version=2，实际=%d", resp.Version)
	}
	if resp.NetID != "abc123" {
		t.Errorf("未提供的字段不应改变，实际 NetID=%s", resp.NetID)
	}
}

func TestStudentService_Update_NetIDTaken(t *testing.T) {
	svc, env := setupTestStudentService()
	env.addStudent("taken", nil, "", allFree())
	id := env.addStudent("abc123", nil, "", allFree())

	_, err := svc.Update(context.Background(), id, &dto.UpdateStudentRequest{NetID: strp("TAKEN")})
	if !errors.Is(err, ErrNetIDTaken) {
		t.Errorf("期望 ErrNetIDTaken，实际: %v", err)
	}
}

func TestStudentService_Delete(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", nil, "", allFree())
	ctx := context.Background()

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("重复删除期望 ErrStudentNotFound，实际: %v", err)
	}
}

// ── 已修课程 ──

func TestStudentService_Completions(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", []string{"CS 1110"}, "", allFree())
	ctx := context.Background()

	if _, err := svc.AddCompletion(ctx, id, &dto.AddCompletionRequest{CourseNumber: "CS 2110"}); err != nil {
		t.Fatalf("AddCompletion 应成功: %v", err)
	}
	if _, err := svc.AddCompletion(ctx, id, &dto.AddCompletionRequest{CourseNumber: "CS 2110"}); !errors.Is(err, ErrCompletionExists) {
		t.Errorf("期望 ErrCompletionExists，实际: %v", err)
	}

	list, err := svc.ListCompletions(ctx, id)
	if err != nil {
		t.Fatalf("ListCompletions 应成功: %v", err)
	}
	if len(list.CompletedCourses) != 2 {
		t.Fatalf("期望 2 门已修课程，实际=%d", len(list.CompletedCourses))
	}

	// 路径中只给出数字时补全默认院系
	if err := svc.RemoveCompletion(ctx, id, "2110"); err != nil {
		t.Fatalf("RemoveCompletion 应成功: %v", err)
	}
	if err := svc.RemoveCompletion(ctx, id, "cs-2110"); !errors.Is(err, ErrCompletionNotFound) {
		t.Errorf("期望 ErrCompletionNotFound，实际: %v", err)
	}
	if err := svc.RemoveCompletion(ctx, id, "intro"); !errors.Is(err, ErrInvalidCourseNumber) {
		t.Errorf("期望 ErrInvalidCourseNumber，实际: %v", err)
	}
}

// ── 空闲时段 ──

func TestStudentService_Availability(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", nil, "", allFree())
	ctx := context.Background()

	// 只开放周一 9 点与周五 14 点
	bitmap := []byte(strings.Repeat("0", 168))
	bitmap[0+7*9] = '1'
	bitmap[4+7*14] = '1'

	resp, err := svc.SetAvailability(ctx, id, &dto.AvailabilityRequest{Availability: string(bitmap)})
	if err != nil {
		t.Fatalf("SetAvailability 应成功: %v", err)
	}
	if resp.FreeSlots != 2 {
		t.Errorf("期望 FreeSlots=2，实际=%d", resp.FreeSlots)
	}
	if got := resp.Days[0].FreeHours; len(got) != 1 || got[0] != 9 {
		t.Errorf("周一空闲小时应为 [9]，实际=%v", got)
	}
	if got := resp.Days[4].FreeHours; len(got) != 1 || got[0] != 14 {
		t.Errorf("周五空闲小时应为 [14]，实际=%v", got)
	}

	got, err := svc.GetAvailability(ctx, id)
	if err != nil {
		t.Fatalf("GetAvailability 应成功: %v", err)
	}
	if got.Availability != string(bitmap) {
		t.Error("读取的位图与写入不一致")
	}
}

func TestStudentService_ImportAvailabilityICS(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", nil, "", allFree())

	resp, err := svc.ImportAvailabilityICS(context.Background(), id, strings.NewReader(weeklyICS))
	if err != nil {
		t.Fatalf("ImportAvailabilityICS 应成功: %v", err)
	}
	if resp.Events != 1 || resp.BusySlots != 2 {
		t.Errorf("期望 1 个事件 2 个忙碌时段，实际 events=%d busy=%d", resp.Events, resp.BusySlots)
	}
	stored := env.students.students[id]
	if stored.Availability[0+7*10] != '0' || stored.Availability[2+7*10] != '0' {
		t.Error("周一、周三 10 点应被标记为忙碌")
	}
}

func TestStudentService_ImportAvailabilityICS_Invalid(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", nil, "", allFree())

	_, err := svc.ImportAvailabilityICS(context.Background(), id, strings.NewReader("not a calendar"))
	if !errors.Is(err, ErrInvalidICS) {
		t.Errorf("期望 ErrInvalidICS，实际: %v", err)
	}
}

func TestStudentService_Update_OptimisticLock(t *testing.T) {
	svc, env := setupTestStudentService()
	id := env.addStudent("abc123", nil, "", allFree())

	// 模拟并发写入：存储中的版本已前进
	env.students.students[id].Version = 5

	ss := svc.(*studentService)
	student, _ := env.students.GetByID(context.Background(), id)
	student.Version = 4
	err := ss.updateError(env.students.Update(context.Background(), student))
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}
