package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow graphs, nodes and edges kept as documents
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT false,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_is_active ON workflows(is_active);
			CREATE INDEX idx_workflows_nodes ON workflows USING GIN (nodes jsonb_path_ops);

			-- One execution state per (workflow, lead)
			CREATE TABLE execution_states (
				workflow_id VARCHAR(255) NOT NULL,
				lead_id VARCHAR(255) NOT NULL,
				current_node VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				variables JSONB NOT NULL DEFAULT '{}',
				history JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, lead_id)
			);

			CREATE INDEX idx_execution_states_status ON execution_states(status);

			-- Append-only audit log
			CREATE TABLE action_logs (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				lead_id VARCHAR(255) NOT NULL,
				action_type VARCHAR(100) NOT NULL,
				data JSONB,
				status VARCHAR(20) NOT NULL CHECK (status IN ('SUCCESS', 'FAILED')),
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_action_logs_workflow_id ON action_logs(workflow_id);
			CREATE INDEX idx_action_logs_lead_id ON action_logs(lead_id);
		`,
		2: `
			-- CRM records read and written by actions
			CREATE TABLE leads (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(100) NOT NULL DEFAULT '',
				score INTEGER NOT NULL DEFAULT 0,
				company VARCHAR(255) NOT NULL DEFAULT '',
				tags JSONB NOT NULL DEFAULT '[]',
				notes TEXT NOT NULL DEFAULT '',
				custom_fields JSONB NOT NULL DEFAULT '{}',
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				last_contacted_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE emails (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				account_id VARCHAR(255) NOT NULL DEFAULT '',
				message_id VARCHAR(255) NOT NULL DEFAULT '',
				direction VARCHAR(20) NOT NULL,
				from_address VARCHAR(255) NOT NULL DEFAULT '',
				to_address VARCHAR(255) NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				sent_at TIMESTAMP WITH TIME ZONE NOT NULL,
				opened_at TIMESTAMP WITH TIME ZONE,
				clicked_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_emails_lead_sent_at ON emails(lead_id, sent_at DESC);

			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority VARCHAR(20) NOT NULL,
				assignee_id VARCHAR(255) NOT NULL DEFAULT '',
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_lead_id ON tasks(lead_id);

			CREATE TABLE appointments (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				location VARCHAR(255) NOT NULL DEFAULT '',
				assignee_id VARCHAR(255) NOT NULL DEFAULT '',
				start_at TIMESTAMP WITH TIME ZONE NOT NULL,
				end_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_appointments_lead_id ON appointments(lead_id);

			CREATE TABLE notifications (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				lead_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				message TEXT NOT NULL,
				type VARCHAR(50) NOT NULL,
				read BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_notifications_user_id ON notifications(user_id);
		`,
	}
}
