package sqlinline

const QInsertImageJob = `--sql 2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1
insert into image_jobs (
    id,
    owner_id,
    kind,
    prompt,
    source_artifact_ref,
    status,
    created_at,
    updated_at
)
values (
    $1::text,
    $2::text,
    $3::text,
    $4::text,
    nullif($5::text, ''),
    'pending',
    $6::timestamptz,
    $6::timestamptz
);
`

// QFinishImageJob only touches pending rows; zero affected rows means the
// job is missing or already terminal.
const QFinishImageJob = `--sql 7f0c3e52-93a4-4d0e-b1f6-5b8e2d6c41a9
update image_jobs
set
    status = $2::text,
    artifact_ref = nullif($3::text, ''),
    error_detail = nullif($4::text, ''),
    updated_at = greatest(now(), updated_at + interval '1 microsecond')
where id = $1::text
  and status = 'pending';
`

const QImageJobStatus = `--sql c41d9a07-5e3b-4f8a-9c62-0d7e1b3a58f4
select status
from image_jobs
where id = $1::text;
`

const QSelectImageJob = `--sql 9b2e6f14-a8c7-4d35-8e01-6f4c2a9d7b53
select
    id,
    owner_id,
    kind,
    prompt,
    coalesce(source_artifact_ref, ''),
    status,
    coalesce(artifact_ref, ''),
    coalesce(error_detail, ''),
    created_at,
    updated_at
from image_jobs
where id = $1::text;
`

const QListImageJobsByOwner = `--sql 5d83a1c6-0f29-4b7e-a4d8-3e6b9c0f12a7
select
    id,
    owner_id,
    kind,
    prompt,
    coalesce(source_artifact_ref, ''),
    status,
    coalesce(artifact_ref, ''),
    coalesce(error_detail, ''),
    created_at,
    updated_at
from image_jobs
where owner_id = $1::text
order by created_at desc, id;
`

const QImageJobStats = `--sql e8a6470b-2c1d-4f93-b5e7-91d0c3a4f628
select
    count(*)                                        as total,
    count(*) filter (where status = 'pending')      as pending,
    count(*) filter (where status = 'completed')    as completed,
    count(*) filter (where status = 'failed')       as failed
from image_jobs
where owner_id = $1::text;
`
