package postgresql

// migrations returns the versioned schema statements applied by the
// migration manager.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS modules (
				ref_code VARCHAR(255) PRIMARY KEY,
				id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(64) NOT NULL,
				content JSONB,
				params JSONB,
				validation_format_code VARCHAR(255),
				custom_error_message JSONB,
				choices JSONB,
				assistant JSONB,
				success_message JSONB,
				failure_message JSONB,
				metadata JSONB,
				category VARCHAR(64),
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_modules_type ON modules(type);
			CREATE INDEX IF NOT EXISTS idx_modules_active ON modules(active);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_workflows_active ON workflows(active);

			CREATE TABLE IF NOT EXISTS workflow_steps (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_ref VARCHAR(255) NOT NULL,
				step_name VARCHAR(255) NOT NULL,
				module_ref VARCHAR(255) NOT NULL,
				is_entry_point BOOLEAN NOT NULL DEFAULT false,
				order_index INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, step_ref)
			);
			CREATE INDEX IF NOT EXISTS idx_workflow_steps_module ON workflow_steps(module_ref);

			CREATE TABLE IF NOT EXISTS workflow_outputs (
				id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_step_ref VARCHAR(255) NOT NULL,
				category VARCHAR(64) NOT NULL,
				label VARCHAR(255),
				destination_type VARCHAR(32) NOT NULL,
				destination_ref VARCHAR(255),
				priority INTEGER NOT NULL DEFAULT 0,
				delay_seconds INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);
			CREATE INDEX IF NOT EXISTS idx_workflow_outputs_from ON workflow_outputs(workflow_id, from_step_ref);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS validation_formats (
				format_code VARCHAR(255) PRIMARY KEY,
				id VARCHAR(255) NOT NULL,
				format_name VARCHAR(255) NOT NULL,
				validation_regex TEXT,
				error_message JSONB,
				description TEXT,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS faqs (
				id VARCHAR(255) PRIMARY KEY,
				category VARCHAR(255),
				question JSONB NOT NULL,
				answer JSONB NOT NULL,
				order_index INTEGER NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_faqs_active ON faqs(active, order_index);
		`,
		4: `
			CREATE TABLE IF NOT EXISTS sessions (
				id VARCHAR(255) PRIMARY KEY,
				conversant_id VARCHAR(255) NOT NULL,
				channel VARCHAR(64),
				workflow_id VARCHAR(255),
				step_ref VARCHAR(255),
				stack JSONB,
				variables JSONB,
				locale VARCHAR(8) NOT NULL,
				status VARCHAR(32) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				last_activity_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_conversant ON sessions(conversant_id, status);
			CREATE INDEX IF NOT EXISTS idx_sessions_idle ON sessions(status, last_activity_at);

			CREATE TABLE IF NOT EXISTS messages (
				id VARCHAR(255) PRIMARY KEY,
				session_id VARCHAR(255) NOT NULL,
				role VARCHAR(32) NOT NULL,
				content TEXT NOT NULL,
				step_ref VARCHAR(255),
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
		`,
	}
}
