package sqlinline

const QJobsEnsureSchema = `--sql 6b1f7f0e-2d0c-4f3e-9a55-1c8e2b7d4a10
create table if not exists generation_jobs (
    id text primary key,
    kind text not null,
    status text not null,
    remote_id text not null default '',
    prompt text not null default '',
    artifact_path text not null default '',
    error_message text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QJobsInsert = `--sql 0d7c3a52-8b6e-4c1f-b2d9-5e4a7f9c1b23
insert into generation_jobs (id, kind, status, remote_id, prompt, artifact_path, error_message, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $8);
`

const QJobsUpdateStatus = `--sql 9a2e4b61-3c7d-4f80-8e15-b6d2c9a0f347
update generation_jobs
set status = $2,
    remote_id = coalesce(nullif($3, ''), remote_id),
    artifact_path = coalesce(nullif($4, ''), artifact_path),
    error_message = coalesce(nullif($5, ''), error_message),
    updated_at = now()
where id = $1;
`

const QJobsGetByID = `--sql c4e8f1a3-7b29-4d6e-a0c5-2f9b8d3e6a71
select id, kind, status, remote_id, prompt, artifact_path, error_message, created_at, updated_at
from generation_jobs
where id = $1;
`
