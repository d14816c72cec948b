package store

import "database/sql"

// Job is one recorded analysis submission and its outcome.
type Job struct {
	ID               int64
	Topic            string
	Category         string
	State            string
	MatchedArticleID *string
	Advisory         *string
	CreatedAt        *string
	FinishedAt       *string
}

// RecordJob inserts a new analysis job in its initial state.
func (s *Store) RecordJob(topic, category string) (int64, error) {
	result, err := s.conn.Exec(
		`INSERT INTO jobs (topic, category) VALUES (?, ?)`, topic, category,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinishJob records a job's terminal state. matchedID and advisory may be
// empty depending on the outcome.
func (s *Store) FinishJob(id int64, state, matchedID, advisory string) error {
	var matched, adv any
	if matchedID != "" {
		matched = matchedID
	}
	if advisory != "" {
		adv = advisory
	}
	_, err := s.conn.Exec(
		`UPDATE jobs SET state = ?, matched_article_id = ?, advisory = ?,
		finished_at = datetime('now') WHERE id = ?`,
		state, matched, adv, id,
	)
	return err
}

// RecentJobs returns the most recently submitted jobs, newest first.
func (s *Store) RecentJobs(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(
		`SELECT id, topic, category, state, matched_article_id, advisory, created_at, finished_at
		FROM jobs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var category sql.NullString
		if err := rows.Scan(&j.ID, &j.Topic, &category, &j.State,
			&j.MatchedArticleID, &j.Advisory, &j.CreatedAt, &j.FinishedAt); err != nil {
			return nil, err
		}
		j.Category = category.String
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
