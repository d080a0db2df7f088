package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(255) NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				settings JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
		`,
		2: `
			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL,
				config JSONB,
				is_active BOOLEAN NOT NULL DEFAULT false,
				priority INTEGER NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_workflow_id ON schedules(workflow_id);
			CREATE INDEX idx_schedules_is_active ON schedules(is_active);
		`,
		3: `
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				trigger_type VARCHAR(50),
				input JSONB,
				output JSONB,
				logs JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				execution_time_ms BIGINT NOT NULL DEFAULT 0,
				node_count INTEGER NOT NULL DEFAULT 0,
				success_node_count INTEGER NOT NULL DEFAULT 0,
				failed_node_count INTEGER NOT NULL DEFAULT 0,
				latency_bucket VARCHAR(20),
				error_message TEXT,
				failure_type VARCHAR(50)
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_started_at ON executions(started_at);

			CREATE TABLE dispatch_attempts (
				id VARCHAR(255) PRIMARY KEY,
				schedule_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				attempt INTEGER NOT NULL,
				status VARCHAR(20) NOT NULL,
				error TEXT,
				at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_dispatch_attempts_schedule_id ON dispatch_attempts(schedule_id);
		`,
	}
}
