package store

import "time"

// Message is the row shape for the messages table. Payload is stored as a
// JSON text blob; components never see the raw row type, only value copies
// returned by the package functions that wrap these models.
type Message struct {
	ID              string `gorm:"primaryKey;column:id"`
	Type            string `gorm:"column:type;index"`
	Version         string `gorm:"column:version"`
	Timestamp       time.Time `gorm:"column:timestamp"`
	CorrelationID   *string   `gorm:"column:correlation_id"`
	FromAgent       string    `gorm:"column:from_agent"`
	ToAgent         *string   `gorm:"column:to_agent"`
	Channel         string    `gorm:"column:channel"`
	Priority        int       `gorm:"column:priority"`
	Payload         string    `gorm:"column:payload"`
	Status          string    `gorm:"column:status"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	ExpiresAt       *time.Time `gorm:"column:expires_at"`
	DeliveryCount   int        `gorm:"column:delivery_count"`
	LastDeliveredAt *time.Time `gorm:"column:last_delivered_at"`
	Error           *string    `gorm:"column:error"`
}

func (Message) TableName() string { return "messages" }

// ChannelSubscription is the (channel_name, agent_id) membership row.
type ChannelSubscription struct {
	ChannelName  string    `gorm:"primaryKey;column:channel_name"`
	AgentID      string    `gorm:"primaryKey;column:agent_id"`
	SubscribedAt time.Time `gorm:"column:subscribed_at"`
}

func (ChannelSubscription) TableName() string { return "channel_subscriptions" }

// AgentStatusRow is the agent_status table row.
type AgentStatusRow struct {
	AgentID           string    `gorm:"primaryKey;column:agent_id"`
	Status            string    `gorm:"column:status"`
	CurrentTask       *string   `gorm:"column:current_task"`
	LastHeartbeat     time.Time `gorm:"column:last_heartbeat"`
	MessagesPending   int       `gorm:"column:messages_pending"`
	MessagesProcessed int       `gorm:"column:messages_processed"`
	ErrorCount        int       `gorm:"column:error_count"`
}

func (AgentStatusRow) TableName() string { return "agent_status" }

// MessageDelivery records a broadcast message's claim by one subscriber.
type MessageDelivery struct {
	MessageID      string     `gorm:"primaryKey;column:message_id"`
	AgentID        string     `gorm:"primaryKey;column:agent_id"`
	DeliveredAt    time.Time  `gorm:"column:delivered_at"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at"`
}

func (MessageDelivery) TableName() string { return "message_deliveries" }

// DeadLetter is an archived failed-message snapshot.
type DeadLetter struct {
	ID              string    `gorm:"primaryKey;column:id"`
	OriginalMessage string    `gorm:"column:original_message"`
	Error           string    `gorm:"column:error"`
	MovedAt         time.Time `gorm:"column:moved_at"`
	RetryCount      int       `gorm:"column:retry_count"`
}

func (DeadLetter) TableName() string { return "dead_letter_queue" }

// JobBoardTask is the job_board table row.
type JobBoardTask struct {
	TaskID       string    `gorm:"primaryKey;column:task_id"`
	Title        string    `gorm:"column:title"`
	Description  string    `gorm:"column:description"`
	Status       string    `gorm:"column:status"`
	AssignedTo   *string   `gorm:"column:assigned_to"`
	Priority     int       `gorm:"column:priority"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
	Dependencies string    `gorm:"column:dependencies"`
	Result       *string   `gorm:"column:result"`
}

func (JobBoardTask) TableName() string { return "job_board" }
