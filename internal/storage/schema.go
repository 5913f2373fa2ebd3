package storage

import "strings"

// Column types that differ between SQLite and Postgres.
var (
	sqliteTypes = strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME",
	)
	postgresTypes = strings.NewReplacer(
		"{{pk}}", "BIGSERIAL PRIMARY KEY",
		"{{ts}}", "TIMESTAMPTZ",
	)
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		auth_uid TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'member',
		telegram_id BIGINT UNIQUE,
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id {{pk}},
		first_name TEXT,
		surname TEXT,
		full_name TEXT,
		email TEXT,
		phone TEXT,
		address TEXT,
		status TEXT,
		notes TEXT,
		interests TEXT,
		joining_us TEXT,
		is_newcomer BOOLEAN NOT NULL DEFAULT TRUE,
		telegram_id BIGINT,
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP,
		updated_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_members_email ON members(email)`,
	`CREATE INDEX IF NOT EXISTS idx_members_status ON members(status)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id {{pk}},
		created_by BIGINT NOT NULL REFERENCES users(id),
		assigned_to BIGINT REFERENCES members(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'someday',
		due_date TEXT,
		done_at {{ts}},
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_done_at ON tasks(done_at)`,
	// Services
	`CREATE TABLE IF NOT EXISTS service_templates (
		id {{pk}},
		name TEXT NOT NULL,
		default_time TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS recurring_patterns (
		id {{pk}},
		template_id BIGINT NOT NULL REFERENCES service_templates(id) ON DELETE CASCADE,
		pattern_type TEXT NOT NULL,
		day_of_week INTEGER,
		week_of_month INTEGER,
		interval_weeks INTEGER,
		start_date TEXT NOT NULL,
		end_date TEXT,
		last_generated_date TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id {{pk}},
		template_id BIGINT NOT NULL REFERENCES service_templates(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		service_date TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (template_id, service_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_services_date ON services(service_date)`,
	`CREATE TABLE IF NOT EXISTS rota_assignments (
		id {{pk}},
		service_id BIGINT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
		member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		duty TEXT NOT NULL,
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (service_id, duty, member_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rota_member ON rota_assignments(member_id)`,
	// Messaging
	`CREATE TABLE IF NOT EXISTS messages (
		id {{pk}},
		sender_id BIGINT NOT NULL REFERENCES users(id),
		member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		read_at {{ts}},
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_member ON messages(member_id)`,
	`CREATE TABLE IF NOT EXISTS announcements (
		id {{pk}},
		author_id BIGINT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		published_at {{ts}} NOT NULL,
		expires_at {{ts}},
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS prayer_requests (
		id {{pk}},
		name TEXT,
		email TEXT,
		request TEXT,
		is_private BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT,
		notes TEXT,
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP,
		updated_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	// Form builder
	`CREATE TABLE IF NOT EXISTS form_configs (
		id {{pk}},
		form_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		target_table TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		static_content TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_form_configs_type ON form_configs(form_type, is_active)`,
	`CREATE TABLE IF NOT EXISTS form_fields (
		id {{pk}},
		config_id BIGINT NOT NULL REFERENCES form_configs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		field_key TEXT NOT NULL,
		field_type TEXT NOT NULL DEFAULT 'text',
		label TEXT NOT NULL DEFAULT '',
		db_column TEXT,
		transformation_type TEXT,
		transformation_config TEXT NOT NULL DEFAULT '{}',
		is_notes_field BOOLEAN NOT NULL DEFAULT FALSE,
		notes_format TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS submission_rules (
		id {{pk}},
		config_id BIGINT NOT NULL REFERENCES form_configs(id) ON DELETE CASCADE,
		rule_type TEXT NOT NULL,
		rule_config TEXT NOT NULL DEFAULT '{}',
		priority INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}
